package confirm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/core"
	"github.com/sua-org/sentry-bridge/internal/snapshot"
	"github.com/sua-org/sentry-bridge/internal/vision"
)

func TestShouldRun_GatedByPhaseToggleAndBand(t *testing.T) {
	enabled := &config.RuntimeConfig{Phases: config.Phases{ConfirmationEnabled: true}}
	disabled := &config.RuntimeConfig{Phases: config.Phases{ConfirmationEnabled: false}}

	assert.True(t, ShouldRun(enabled, core.Decision{RiskLevel: core.RiskHigh}))
	assert.True(t, ShouldRun(enabled, core.Decision{RiskLevel: core.RiskCritical}))
	assert.False(t, ShouldRun(enabled, core.Decision{RiskLevel: core.RiskMedium}))
	assert.False(t, ShouldRun(disabled, core.Decision{RiskLevel: core.RiskCritical}))
}

func fastCfg() *config.RuntimeConfig {
	return &config.RuntimeConfig{
		ConfirmDelaySeconds:   0,
		ConfirmTimeoutSeconds: 5,
	}
}

func TestRun_SecondPassAtOrAboveFirstKeepsFirst(t *testing.T) {
	first := core.Decision{RiskLevel: core.RiskHigh, RiskReason: "first pass"}

	fetch := func(ctx context.Context, eventID string, delay time.Duration) (*snapshot.Result, error) {
		return &snapshot.Result{Bytes: []byte("x"), StagingPath: "ai-snapshots/e.jpg"}, nil
	}
	analyze := func(ctx context.Context, req vision.Request) (core.Decision, error) {
		return core.Decision{RiskLevel: core.RiskHigh, EventType: core.EventUnknownPerson}, nil
	}

	c := New(fetch, analyze)
	out := c.Run(context.Background(), fastCfg(), "evt-1", first, ReqBase{}, core.Context{})
	assert.Equal(t, "first pass", out.RiskReason)
}

func TestRun_SecondPassOneBandLowerAdoptsSecond(t *testing.T) {
	first := core.Decision{RiskLevel: core.RiskCritical, RiskReason: "first pass"}

	fetch := func(ctx context.Context, eventID string, delay time.Duration) (*snapshot.Result, error) {
		return &snapshot.Result{Bytes: []byte("x")}, nil
	}
	analyze := func(ctx context.Context, req vision.Request) (core.Decision, error) {
		// baseline(high)=5 with no adjustment rules firing on a Context
		// that only sets home mode "home" scores exactly 5, banding to
		// high — one below critical.
		return core.Decision{RiskLevel: core.RiskHigh, RiskReason: "second pass", EventType: core.EventOther}, nil
	}

	c := New(fetch, analyze)
	out := c.Run(context.Background(), fastCfg(), "evt-2", first, ReqBase{}, core.Context{HomeMode: core.ModeHome})
	assert.Equal(t, "second pass", out.RiskReason)
	assert.Equal(t, core.RiskHigh, out.RiskLevel)
}

func TestRun_SecondPassTwoOrMoreBandsLowerForcesMediumDowngrade(t *testing.T) {
	first := core.Decision{RiskLevel: core.RiskCritical, RiskReason: "first pass"}

	fetch := func(ctx context.Context, eventID string, delay time.Duration) (*snapshot.Result, error) {
		return &snapshot.Result{Bytes: []byte("x")}, nil
	}
	analyze := func(ctx context.Context, req vision.Request) (core.Decision, error) {
		return core.Decision{RiskLevel: core.RiskLow, RiskReason: "nothing concerning", EventType: core.EventDelivery}, nil
	}

	c := New(fetch, analyze)
	out := c.Run(context.Background(), fastCfg(), "evt-3", first, ReqBase{}, core.Context{})
	assert.Equal(t, core.RiskMedium, out.RiskLevel)
	assert.Equal(t, 3, out.RiskScore)
	assert.Contains(t, out.RiskReason, "confirmation downgrade: nothing concerning")
}

func TestRun_KnownPersonOnSecondPassForcesMediumDowngrade(t *testing.T) {
	first := core.Decision{RiskLevel: core.RiskHigh, RiskReason: "first pass"}

	fetch := func(ctx context.Context, eventID string, delay time.Duration) (*snapshot.Result, error) {
		return &snapshot.Result{Bytes: []byte("x")}, nil
	}
	analyze := func(ctx context.Context, req vision.Request) (core.Decision, error) {
		return core.Decision{RiskLevel: core.RiskHigh, RiskReason: "it's grandma", EventType: core.EventKnownPerson}, nil
	}

	c := New(fetch, analyze)
	out := c.Run(context.Background(), fastCfg(), "evt-4", first, ReqBase{}, core.Context{})
	assert.Equal(t, core.RiskMedium, out.RiskLevel)
}

func TestRun_FetchFailureKeepsOriginalDecision(t *testing.T) {
	first := core.Decision{RiskLevel: core.RiskHigh, RiskReason: "first pass"}

	fetch := func(ctx context.Context, eventID string, delay time.Duration) (*snapshot.Result, error) {
		return nil, assert.AnError
	}
	analyze := func(ctx context.Context, req vision.Request) (core.Decision, error) {
		t.Fatal("analyze should not be called when fetch fails")
		return core.Decision{}, nil
	}

	c := New(fetch, analyze)
	out := c.Run(context.Background(), fastCfg(), "evt-5", first, ReqBase{}, core.Context{})
	assert.Equal(t, first, out)
}

func TestRun_TimeoutKeepsOriginalDecision(t *testing.T) {
	first := core.Decision{RiskLevel: core.RiskHigh, RiskReason: "first pass"}
	cfg := &config.RuntimeConfig{ConfirmDelaySeconds: 5, ConfirmTimeoutSeconds: 0}

	fetch := func(ctx context.Context, eventID string, delay time.Duration) (*snapshot.Result, error) {
		t.Fatal("fetch should not be reached when the timeout elapses during the delay")
		return nil, nil
	}
	analyze := func(ctx context.Context, req vision.Request) (core.Decision, error) {
		return core.Decision{}, nil
	}

	c := New(fetch, analyze)
	out := c.Run(context.Background(), cfg, "evt-6", first, ReqBase{}, core.Context{})
	assert.Equal(t, first, out)
}
