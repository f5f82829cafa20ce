package bus

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sua-org/sentry-bridge/internal/core"
)

// Publisher emits the pending/final analysis payloads on
// "<prefix>/analysis" (§4.11, §6). Both publications use the same
// event_id so downstream consumers can update-in-place, and both are
// QoS>=1 retained so a late-joining consumer sees the last state.
type Publisher struct {
	client *Client
	topic  string
}

// NewPublisher builds a Publisher that writes to
// "<baseTopic>/analysis".
func NewPublisher(client *Client, baseTopic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  strings.TrimSuffix(baseTopic, "/") + "/analysis",
	}
}

// PublishPending emits the preliminary payload immediately after
// Intake accepts an event, before vision analysis has run (Invariant
// 1: pending always precedes final for the same event_id).
func (p *Publisher) PublishPending(evt core.DetectionEvent) error {
	payload := core.AnalysisPayload{
		EventID:   evt.EventID,
		Camera:    evt.Camera,
		Label:     evt.Label,
		Risk:      core.RiskLow,
		Analysis:  fmt.Sprintf("Person detected on %s — vision analysis pending.", evt.Camera),
		Timestamp: time.Now().UTC(),
	}
	return p.publish(payload)
}

// PublishFinal emits the complete payload after scoring, confirmation
// and media decisioning.
func (p *Publisher) PublishFinal(payload core.AnalysisPayload) error {
	return p.publish(payload)
}

func (p *Publisher) publish(payload core.AnalysisPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: marshal analysis payload: %w", err)
	}
	if err := p.client.Publish(p.topic, 1, true, body); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", p.topic, err)
	}
	log.Printf("[bus] published analysis -> %s (event_id=%s risk=%s)", p.topic, payload.EventID, payload.Risk)
	return nil
}
