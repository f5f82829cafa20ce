// Package vision talks to the self-hosted vision model's generate
// endpoint, then extracts a structured Decision out of whatever prose
// or JSON it returns. Adapted from the teacher's findface.Client HTTP
// shape (bytes.Buffer-built request, context-scoped http.Client,
// explicit status-code check) but retargeted at the ollama-style
// /api/generate contract instead of FindFace's multipart face upload.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sua-org/sentry-bridge/internal/core"
)

// Request is everything the prompt builder needs about the event
// being analyzed.
type Request struct {
	Camera            string
	Zone              string
	Notes             string
	LocalTime         time.Time
	HomeMode          core.HomeMode
	KnownFacesPresent bool
	RecentEvents      int
	SnapshotPath      string // relative path, included in the prompt for traceability
	ImageBytes        []byte
}

// Client calls the vision model's /api/generate endpoint.
type Client struct {
	endpoint         string
	fallbackEndpoint string
	model            string
	http             *http.Client
}

// New builds a Client. fallbackEndpoint may be empty, in which case
// no retry is attempted.
func New(endpoint, fallbackEndpoint, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:         strings.TrimSuffix(endpoint, "/"),
		fallbackEndpoint: strings.TrimSuffix(fallbackEndpoint, "/"),
		model:            model,
		http:             &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Images  []string               `json:"images"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Analyze builds the prompt, calls the model, and extracts a Decision
// from the response. When the primary call fails for any reason
// (transport error, 4xx, 5xx, or an undecodable response envelope) it
// retries once against the fallback endpoint, if one is configured;
// failures are not classified as transient or permanent. It never
// returns an error for a malformed or unparseable model text — the
// keyword fallback always succeeds — but does return an error when the
// primary call fails and the fallback call (if any) fails too.
func (c *Client) Analyze(ctx context.Context, req Request) (core.Decision, error) {
	requestID := uuid.New().String()
	prompt := buildPrompt(req)

	text, err := c.call(ctx, c.endpoint, prompt, req.ImageBytes, requestID)
	if err != nil && c.fallbackEndpoint != "" {
		log.Printf("[vision] req=%s primary endpoint failed (%v), retrying fallback", requestID, err)
		text, err = c.call(ctx, c.fallbackEndpoint, prompt, req.ImageBytes, requestID)
	}
	if err != nil {
		return core.Decision{}, fmt.Errorf("vision: req=%s: %w", requestID, err)
	}

	if raw, ok := extractDecision(text); ok {
		return raw.sanitize(), nil
	}

	log.Printf("[vision] req=%s no JSON extracted, using keyword fallback", requestID)
	return fallbackDecision(text), nil
}

func (c *Client) call(ctx context.Context, endpoint, prompt string, image []byte, requestID string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("no endpoint configured")
	}

	body := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%s status %d (transient): %s", endpoint, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s status %d: %s", endpoint, resp.StatusCode, string(respBody))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", fmt.Errorf("decode response envelope: %w", err)
	}
	return gr.Response, nil
}

func buildPrompt(req Request) string {
	known := "no"
	if req.KnownFacesPresent {
		known = "yes"
	}

	var b strings.Builder
	b.WriteString("You are a home security analyst reviewing a single camera snapshot.\n")
	fmt.Fprintf(&b, "Camera: %s\n", req.Camera)
	fmt.Fprintf(&b, "Zone: %s\n", req.Zone)
	if req.Notes != "" {
		fmt.Fprintf(&b, "Camera notes: %s\n", req.Notes)
	}
	fmt.Fprintf(&b, "Local time: %s\n", req.LocalTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Home mode: %s\n", req.HomeMode)
	fmt.Fprintf(&b, "Known household faces currently present: %s\n", known)
	fmt.Fprintf(&b, "Detections from this camera in the recent window: %d\n", req.RecentEvents)
	if req.SnapshotPath != "" {
		fmt.Fprintf(&b, "Snapshot reference: %s\n", req.SnapshotPath)
	}
	b.WriteString("\nRespond with a single JSON object only, of the form:\n")
	b.WriteString(`{"risk_level":"low|medium|high|critical","risk_confidence":0.0,"risk_reason":"...",` +
		`"event_type":"unknown_person|known_person|delivery|vehicle|animal|loitering|other",` +
		`"action":"notify_only|notify_and_save_clip|notify_and_light|notify_and_speaker|notify_and_alarm",` +
		`"subject_identity":"known|unknown","subject_description":"...","behavior":"..."}` + "\n")
	return b.String()
}
