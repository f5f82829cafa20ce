// Package delivery implements the Delivery Client: it POSTs the
// formatted alert to the agent gateway's webhook, only for events at
// or above medium risk (Invariant 3). Adapted from the teacher's
// plain http.Client-with-bearer-header request shape
// (drivers.HikvisionDriver, findface.Client).
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sua-org/sentry-bridge/internal/core"
)

// Client posts to {gateway}/hooks/agent.
type Client struct {
	gatewayURL string
	token      string
	channel    string
	recipient  string
	http       *http.Client
}

// New builds a Client.
func New(gatewayURL, token, channel, recipient string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		token:      token,
		channel:    channel,
		recipient:  recipient,
		http:       &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Message        string `json:"message"`
	Deliver        bool   `json:"deliver"`
	Channel        string `json:"channel"`
	To             string `json:"to"`
	Name           string `json:"name"`
	SessionKey     string `json:"sessionKey"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// ShouldDeliver reports whether chat delivery applies to level:
// only risk_level >= medium triggers a chat message (Invariant 3).
func ShouldDeliver(level core.RiskLevel) bool {
	return level == core.RiskMedium || level == core.RiskHigh || level == core.RiskCritical
}

// Deliver posts the alert body for camera/eventID. It returns an
// error only on a response other than 200/201/202 or a transport
// failure; callers
// should log and continue — delivery failure never blocks the bus
// publication or memory append (§7 PermanentIO on a non-critical
// subtask).
func (c *Client) Deliver(ctx context.Context, camera, eventID, body string) error {
	env := envelope{
		Message:        "DELIVERY MODE: forward the following message verbatim.\n\n" + body,
		Deliver:        true,
		Channel:        c.channel,
		To:             c.recipient,
		Name:           "sentry-bridge",
		SessionKey:     fmt.Sprintf("frigate:%s:%s", camera, eventID),
		TimeoutSeconds: int(c.http.Timeout.Seconds()),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("delivery: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/hooks/agent", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("delivery: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("delivery: status %d: %s", resp.StatusCode, string(respBody))
}
