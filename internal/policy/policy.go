// Package policy implements the Policy Engine's Gather step: it
// assembles the situational Context a Decision is scored against.
package policy

import (
	"context"
	"time"

	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/core"
	"github.com/sua-org/sentry-bridge/internal/homehub"
	"github.com/sua-org/sentry-bridge/internal/memory"
)

// Engine gathers Context for a detection event.
type Engine struct {
	hub    *homehub.Client
	memory *memory.Store
}

// New builds an Engine.
func New(hub *homehub.Client, mem *memory.Store) *Engine {
	return &Engine{hub: hub, memory: mem}
}

// Gather assembles the Context for camera under cfg. Hub-state
// failures are non-fatal: the pipeline proceeds with home_mode=home and
// known_faces_present=false rather than blocking on a PolicyDeny.
func (e *Engine) Gather(ctx context.Context, camera string, cfg *config.RuntimeConfig) core.Context {
	now := time.Now()
	timeOfDay := core.TimeOfDay(cfg.TimeOfDayFor(now.Hour()))

	var homeMode core.HomeMode = core.ModeHome
	var knownFaces bool
	if e.hub != nil {
		if state, err := e.hub.State(ctx); err == nil {
			homeMode = core.HomeMode(state.HomeMode)
			knownFaces = state.KnownFacesPresent
		}
	}

	zone := cfg.Zones[camera]

	recent := 0
	if e.memory != nil {
		if n, err := e.memory.CountSince(camera, time.Duration(cfg.RecentEventsWindowSeconds)*time.Second); err == nil {
			recent = n
		}
	}

	return core.Context{
		TimeOfDay:         timeOfDay,
		HomeMode:          homeMode,
		KnownFacesPresent: knownFaces,
		CameraZone:        zone.Zone,
		CameraNotes:       zone.Notes,
		RecentEvents:      recent,
	}
}
