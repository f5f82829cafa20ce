// Package nvr is a thin HTTP client for the NVR's read-only event
// media API (§6). It performs no retries of its own: the Snapshot
// Fetcher already retries snapshot->thumbnail, and §7 classifies
// "NVR: no retry" explicitly because that fallback already covers it.
package nvr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to GET /api/events/{id}/{snapshot,thumbnail}.jpg,
// GET /api/events/{id}/clip.mp4 and POST /api/events/{id}/retain.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client bounded by a per-call timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot returns the raw bytes of snapshot.jpg for eventID.
func (c *Client) FetchSnapshot(ctx context.Context, eventID string) ([]byte, error) {
	return c.fetch(ctx, fmt.Sprintf("/api/events/%s/snapshot.jpg", eventID))
}

// FetchThumbnail returns the raw bytes of thumbnail.jpg for eventID.
func (c *Client) FetchThumbnail(ctx context.Context, eventID string) ([]byte, error) {
	return c.fetch(ctx, fmt.Sprintf("/api/events/%s/thumbnail.jpg", eventID))
}

// FetchClip returns the raw bytes of clip.mp4 for eventID.
func (c *Client) FetchClip(ctx context.Context, eventID string) ([]byte, error) {
	return c.fetch(ctx, fmt.Sprintf("/api/events/%s/clip.mp4", eventID))
}

// Retain marks eventID's clip for retention.
func (c *Client) Retain(ctx context.Context, eventID string) error {
	url := c.baseURL + fmt.Sprintf("/api/events/%s/retain", eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("nvr: build retain request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nvr: retain request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("nvr: retain status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("nvr: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nvr: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nvr: %s status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nvr: read body %s: %w", path, err)
	}
	return body, nil
}
