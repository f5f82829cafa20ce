// Package status implements the bridge's own periodic self-status
// publication: process CPU/RSS alongside intake queue health, on
// <prefix>/bridge/status. Grounded directly on the teacher's
// Supervisor.publishStatuses, which samples process.Process via
// gopsutil on the same kind of ticker loop.
package status

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/sua-org/sentry-bridge/internal/bus"
)

// Snapshot is the process self-status payload.
type Snapshot struct {
	Hostname       string  `json:"hostname"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
	MemoryPercent  float32 `json:"memory_percent"`
	QueueDepth     int     `json:"queue_depth"`
	QueueOverflows uint64  `json:"queue_overflows"`
	Timestamp      time.Time `json:"timestamp"`
}

// QueueStats is the subset of Intake's counters the publisher reports
// alongside process metrics.
type QueueStats func() (depth int, overflows uint64)

// Publisher periodically publishes a Snapshot to <prefix>/bridge/status.
type Publisher struct {
	client    *bus.Client
	topic     string
	interval  time.Duration
	proc      *process.Process
	hostname  string
	queueStat QueueStats
}

// NewPublisher builds a Publisher. If the current process handle can't
// be opened, CPU/RSS fields are simply left zero — this is a
// best-effort diagnostic surface, not a critical dependency.
func NewPublisher(client *bus.Client, baseTopic string, interval time.Duration, queueStat QueueStats) *Publisher {
	hostname, _ := os.Hostname()

	var proc *process.Process
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		proc = p
	}

	return &Publisher{
		client:    client,
		topic:     baseTopic + "/bridge/status",
		interval:  interval,
		proc:      proc,
		hostname:  hostname,
		queueStat: queueStat,
	}
}

// Run ticks until ctx is canceled, publishing one Snapshot per tick.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("[status] publishing to %s every %s", p.topic, p.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce()
		}
	}
}

func (p *Publisher) publishOnce() {
	snap := Snapshot{Hostname: p.hostname, Timestamp: time.Now().UTC()}

	if p.proc != nil {
		if cpu, err := p.proc.CPUPercent(); err == nil {
			snap.CPUPercent = cpu
		}
		if mem, err := p.proc.MemoryInfo(); err == nil {
			snap.MemoryRSSBytes = mem.RSS
		}
		if memP, err := p.proc.MemoryPercent(); err == nil {
			snap.MemoryPercent = memP
		}
	}

	if p.queueStat != nil {
		snap.QueueDepth, snap.QueueOverflows = p.queueStat()
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[status] marshal failed: %v", err)
		return
	}

	if err := p.client.Publish(p.topic, 1, true, payload); err != nil {
		log.Printf("[status] publish failed: %v", err)
	}
}
