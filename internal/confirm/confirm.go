// Package confirm implements the Confirmation Controller: a second,
// bounded look at high/critical-band events before side effects fire,
// to filter out a vision model's one-off overreaction.
package confirm

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/core"
	"github.com/sua-org/sentry-bridge/internal/scoring"
	"github.com/sua-org/sentry-bridge/internal/snapshot"
	"github.com/sua-org/sentry-bridge/internal/vision"
)

var bandRank = map[core.RiskLevel]int{
	core.RiskLow:      0,
	core.RiskMedium:   1,
	core.RiskHigh:      2,
	core.RiskCritical: 3,
}

// Fetch is the subset of the Snapshot Fetcher this controller needs,
// narrowed for testability.
type Fetch func(ctx context.Context, eventID string, delay time.Duration) (*snapshot.Result, error)

// Analyze is the subset of the Vision Client this controller needs.
type Analyze func(ctx context.Context, req vision.Request) (core.Decision, error)

// Controller runs the second confirmation pass.
type Controller struct {
	fetch   Fetch
	analyze Analyze
}

// New builds a Controller.
func New(fetch Fetch, analyze Analyze) *Controller {
	return &Controller{fetch: fetch, analyze: analyze}
}

// ShouldRun reports whether confirmation applies to this decision
// under cfg: the phase toggle must be on and the band must be high or
// critical.
func ShouldRun(cfg *config.RuntimeConfig, first core.Decision) bool {
	if !cfg.Phases.ConfirmationEnabled {
		return false
	}
	return first.RiskLevel == core.RiskHigh || first.RiskLevel == core.RiskCritical
}

// ReqBase carries everything needed to re-build a
// vision.Request once the second snapshot has been fetched.
type ReqBase struct {
	Camera            string
	Zone              string
	Notes             string
	HomeMode          core.HomeMode
	KnownFacesPresent bool
	RecentEvents      int
}

// Run sleeps confirm_delay_seconds (cancellable), re-fetches a fresh
// snapshot, re-invokes vision analysis and scoring, and reconciles the
// two decisions by band comparison. On timeout or any fetch/vision
// error, it logs and returns first unchanged — confirmation failures
// never block the pipeline (§7).
func (c *Controller) Run(ctx context.Context, cfg *config.RuntimeConfig, eventID string, first core.Decision, reqBase ReqBase, confCtx core.Context) core.Decision {
	delay := time.Duration(cfg.ConfirmDelaySeconds) * time.Second
	timeout := time.Duration(cfg.ConfirmTimeoutSeconds) * time.Second

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-time.After(delay):
	case <-cctx.Done():
		log.Printf("[confirm] %s: timed out before delay elapsed, keeping original decision", eventID)
		return first
	}

	passID := uuid.New().String()

	res, err := c.fetch(cctx, eventID, 0)
	if err != nil {
		log.Printf("[confirm] %s pass=%s: re-fetch failed (%v), keeping original decision", eventID, passID, err)
		return first
	}

	second, err := c.analyze(cctx, vision.Request{
		Camera:            reqBase.Camera,
		Zone:              reqBase.Zone,
		Notes:             reqBase.Notes,
		LocalTime:         time.Now(),
		HomeMode:          reqBase.HomeMode,
		KnownFacesPresent: reqBase.KnownFacesPresent,
		RecentEvents:      reqBase.RecentEvents,
		SnapshotPath:      res.StagingPath,
		ImageBytes:        res.Bytes,
	})
	if err != nil {
		log.Printf("[confirm] %s pass=%s: vision call failed (%v), keeping original decision", eventID, passID, err)
		return first
	}

	scoredSecond := scoring.Score(second, confCtx)
	return reconcile(first, scoredSecond)
}

// reconcile applies the band-comparison rule: second >= first keeps
// first; second one band lower adopts second; second two+ bands lower
// or a known_person re-identification forces a medium-band downgrade.
func reconcile(first, second core.Decision) core.Decision {
	drop := bandRank[first.RiskLevel] - bandRank[second.RiskLevel]

	if drop >= 2 || second.EventType == core.EventKnownPerson {
		downgraded := first
		downgraded.RiskLevel = core.RiskMedium
		downgraded.RiskScore = 3
		downgraded.RiskReason = "confirmation downgrade: " + second.RiskReason
		return downgraded
	}
	if drop == 1 {
		return second
	}
	return first
}
