// Package intake subscribes to the inbound bus topic carrying raw
// person-detection events, decodes and filters them, and enforces the
// per-camera cooldown before handing a DetectionEvent off to the rest
// of the pipeline (§4.1).
package intake

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sua-org/sentry-bridge/internal/bus"
	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/core"
)

// inboundMessage is the decoded shape of the bus's detection-event
// topic (§6: "JSON objects with at minimum type, after.id,
// after.camera, after.label, after.score").
type inboundMessage struct {
	Type  string `json:"type"`
	After struct {
		ID        string    `json:"id"`
		Camera    string    `json:"camera"`
		Label     string    `json:"label"`
		Score     float64   `json:"score"`
		StartTime time.Time `json:"start_time"`
	} `json:"after"`
}

// Intake decodes inbound detection messages and forwards accepted
// ones on Events. Overflow and decode-error counts are exposed for
// tests and status reporting.
type Intake struct {
	snapshot func() *config.RuntimeConfig
	cameras  *registry

	Events chan core.DetectionEvent

	mu         sync.Mutex
	overflowed uint64
	decodeErrs uint64
}

// New builds an Intake whose output channel has the capacity named by
// the config snapshot's intake_queue_capacity (§5 Backpressure).
func New(snapshot func() *config.RuntimeConfig) *Intake {
	capacity := snapshot().IntakeQueueCapacity
	if capacity <= 0 {
		capacity = 256
	}
	return &Intake{
		snapshot: snapshot,
		cameras:  newRegistry(),
		Events:   make(chan core.DetectionEvent, capacity),
	}
}

// Subscribe registers the intake handler on "<baseTopic>/detections".
func (in *Intake) Subscribe(client *bus.Client, baseTopic string) error {
	topic := strings.TrimSuffix(baseTopic, "/") + "/detections"
	log.Printf("[intake] subscribing to %s", topic)
	return client.Subscribe(topic, 1, in.handle)
}

func (in *Intake) handle(_ string, payload []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		in.mu.Lock()
		in.decodeErrs++
		in.mu.Unlock()
		log.Printf("[intake] malformed message, skipping: %v", err)
		return
	}

	if msg.Type != "new" {
		return
	}
	if msg.After.Label != "person" {
		return
	}
	if msg.After.ID == "" || msg.After.Camera == "" {
		log.Printf("[intake] message missing id/camera, skipping")
		return
	}

	cfg := in.snapshot()
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second

	st := in.cameras.get(msg.After.Camera)
	now := time.Now().UTC()
	if !st.tryAccept(now, cooldown) {
		log.Printf("[intake] camera=%s event=%s dropped: within cooldown", msg.After.Camera, msg.After.ID)
		return
	}

	startTime := msg.After.StartTime
	if startTime.IsZero() {
		startTime = now
	}

	evt := core.DetectionEvent{
		EventID:   msg.After.ID,
		Camera:    msg.After.Camera,
		Label:     msg.After.Label,
		Score:     msg.After.Score,
		StartTime: startTime,
	}

	in.enqueue(evt)
}

// enqueue pushes evt, dropping the oldest queued event first if the
// channel is full so the most recent detections are preserved during
// a detection storm (§5 Backpressure).
func (in *Intake) enqueue(evt core.DetectionEvent) {
	select {
	case in.Events <- evt:
		return
	default:
	}

	select {
	case dropped := <-in.Events:
		in.mu.Lock()
		in.overflowed++
		in.mu.Unlock()
		log.Printf("[intake] queue full, dropping oldest event=%s camera=%s", dropped.EventID, dropped.Camera)
	default:
	}

	select {
	case in.Events <- evt:
	default:
		log.Printf("[intake] queue still full after drop, discarding event=%s", evt.EventID)
	}
}

// Stats returns (overflow drops, decode errors) for tests/diagnostics.
func (in *Intake) Stats() (uint64, uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.overflowed, in.decodeErrs
}
