// Package pipeline wires the per-event state machine: Intake hands off
// a DetectionEvent, and Pipeline.Run drives it through snapshot fetch,
// vision analysis, scoring, optional confirmation, action execution,
// formatting, delivery, final publication, and memory append
// (INTAKE → PENDING_PUBLISHED → SNAPSHOT → VISION → SCORE →
// [CONFIRM → VISION_2 → RESCORE] → ACTION → FORMAT → DELIVER →
// FINAL_PUBLISHED → MEMORY_APPEND → DONE). The chat delivery is
// attempted before the final bus payload is published, so the final
// payload is not on the bus until delivery has finished or failed.
//
// Each stage is run through runStage, a recover wrapper
// adapted from the teacher's engines.Manager.ProcessAll: a panicking
// stage is recovered and turned into a fatal pipelineError instead of
// taking the whole event (or the whole process) down with it.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/sua-org/sentry-bridge/internal/alert"
	"github.com/sua-org/sentry-bridge/internal/bus"
	"github.com/sua-org/sentry-bridge/internal/confirm"
	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/core"
	"github.com/sua-org/sentry-bridge/internal/delivery"
	"github.com/sua-org/sentry-bridge/internal/homehub"
	"github.com/sua-org/sentry-bridge/internal/media"
	"github.com/sua-org/sentry-bridge/internal/memory"
	"github.com/sua-org/sentry-bridge/internal/policy"
	"github.com/sua-org/sentry-bridge/internal/scoring"
	"github.com/sua-org/sentry-bridge/internal/snapshot"
	"github.com/sua-org/sentry-bridge/internal/vision"
)

// pipelineError is the tagged-sum stage result: Fatal stops the whole
// run (SNAPSHOT/VISION/SCORE can't proceed without their inputs),
// non-fatal is logged and the run continues with whatever default the
// stage leaves behind (ACTION/DELIVER/MEMORY_APPEND never block
// publication of what's already been decided).
type pipelineError struct {
	Stage string
	Fatal bool
	Err   error
}

func (e *pipelineError) Error() string {
	return fmt.Sprintf("pipeline: stage=%s fatal=%t: %v", e.Stage, e.Fatal, e.Err)
}

func fatalErr(stage string, err error) *pipelineError {
	return &pipelineError{Stage: stage, Fatal: true, Err: err}
}

func softErr(stage string, err error) *pipelineError {
	return &pipelineError{Stage: stage, Fatal: false, Err: err}
}

// runStage recovers a panicking stage function into a fatal
// pipelineError, matching engines.Manager.ProcessAll's per-engine
// recover.
func runStage(stage string, fn func() *pipelineError) (perr *pipelineError) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[pipeline] panic in stage %s: %v\n%s", stage, r, string(debug.Stack()))
			perr = fatalErr(stage, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

// Pipeline bundles every collaborator a single event's run needs.
type Pipeline struct {
	Snapshot   *snapshot.Fetcher
	Vision     *vision.Client
	Policy     *policy.Engine
	Confirm    *confirm.Controller
	Executor   *homehub.Executor
	Delivery   *delivery.Client
	Memory     *memory.Store
	Publisher  *bus.Publisher
	ConfigFunc func() *config.RuntimeConfig
}

// Run executes the full state machine for one detection event. A
// fatal stage error aborts the event (logged); a non-fatal one is
// logged and the run proceeds with the value already in hand.
func (p *Pipeline) Run(ctx context.Context, evt core.DetectionEvent) {
	cfg := p.ConfigFunc()

	if perr := runStage("PENDING_PUBLISHED", func() *pipelineError {
		if err := p.Publisher.PublishPending(evt); err != nil {
			return softErr("PENDING_PUBLISHED", err)
		}
		return nil
	}); perr != nil {
		log.Printf("[pipeline] event=%s %v", evt.EventID, perr)
	}

	zone := cfg.Zones[evt.Camera]
	snapDelay := time.Duration(cfg.SnapshotDelaySeconds) * time.Second

	var snapRes *snapshot.Result
	if perr := runStage("SNAPSHOT", func() *pipelineError {
		res, err := p.Snapshot.Fetch(ctx, evt.EventID, snapDelay)
		if err != nil {
			return fatalErr("SNAPSHOT", err)
		}
		snapRes = res
		return nil
	}); perr != nil {
		log.Printf("[pipeline] event=%s %v, aborting", evt.EventID, perr)
		return
	}

	situCtx := p.Policy.Gather(ctx, evt.Camera, cfg)

	var ai core.Decision
	if perr := runStage("VISION", func() *pipelineError {
		visionTimeout := time.Duration(cfg.VisionTimeoutSeconds) * time.Second
		visionCtx, cancel := context.WithTimeout(ctx, visionTimeout)
		defer cancel()

		decision, err := p.Vision.Analyze(visionCtx, vision.Request{
			Camera:            evt.Camera,
			Zone:              zone.Zone,
			Notes:             zone.Notes,
			LocalTime:         time.Now(),
			HomeMode:          situCtx.HomeMode,
			KnownFacesPresent: situCtx.KnownFacesPresent,
			RecentEvents:      situCtx.RecentEvents,
			SnapshotPath:      snapRes.StagingPath,
			ImageBytes:        snapRes.Bytes,
		})
		if err != nil {
			return fatalErr("VISION", err)
		}
		ai = decision
		return nil
	}); perr != nil {
		log.Printf("[pipeline] event=%s %v, aborting", evt.EventID, perr)
		return
	}

	var decision core.Decision
	if perr := runStage("SCORE", func() *pipelineError {
		decision = scoring.Score(ai, situCtx)
		return nil
	}); perr != nil {
		log.Printf("[pipeline] event=%s %v, aborting", evt.EventID, perr)
		return
	}

	if confirm.ShouldRun(cfg, decision) && p.Confirm != nil {
		runStage("CONFIRM", func() *pipelineError {
			decision = p.Confirm.Run(ctx, cfg, evt.EventID, decision, confirm.ReqBase{
				Camera:            evt.Camera,
				Zone:              zone.Zone,
				Notes:             zone.Notes,
				HomeMode:          situCtx.HomeMode,
				KnownFacesPresent: situCtx.KnownFacesPresent,
				RecentEvents:      situCtx.RecentEvents,
			}, situCtx)
			return nil
		})
	}

	mediaReq := media.Requirement(decision.RiskLevel)
	speech := alert.Speech(decision, evt.Camera)
	inQuietHours := cfg.InQuietHours(time.Now().Hour())

	var clips homehub.ClipRefs
	runStage("ACTION", func() *pipelineError {
		if p.Executor != nil {
			clips = p.Executor.Execute(ctx, cfg, evt.EventID, zone, decision, speech, mediaReq, inQuietHours)
		}
		return nil
	})

	msg := alert.Format(evt.Camera, decision, situCtx, mediaReq, time.Now(), snapRes.StagingPath, clips.Path)

	if delivery.ShouldDeliver(decision.RiskLevel) && p.Delivery != nil {
		if perr := runStage("DELIVER", func() *pipelineError {
			deliverCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DeliveryTimeoutSeconds)*time.Second)
			defer cancel()
			if err := p.Delivery.Deliver(deliverCtx, evt.Camera, evt.EventID, msg.Body); err != nil {
				return softErr("DELIVER", err)
			}
			return nil
		}); perr != nil {
			log.Printf("[pipeline] event=%s %v", evt.EventID, perr)
		}
	}

	var clipURL *string
	if clips.URL != "" {
		url := clips.URL
		clipURL = &url
	}

	final := core.AnalysisPayload{
		EventID:            evt.EventID,
		Camera:             evt.Camera,
		Label:              evt.Label,
		Risk:               decision.RiskLevel,
		RiskScore:          decision.RiskScore,
		RiskConfidence:     decision.RiskConfidence,
		EventType:          decision.EventType,
		Action:             decision.Action,
		Analysis:           msg.Body,
		TTS:                msg.Speech,
		Behavior:           decision.Behavior,
		SubjectIdentity:    string(decision.SubjectIdentity),
		SubjectDescription: decision.SubjectDescription,
		CameraZone:         zone.Zone,
		HomeMode:           situCtx.HomeMode,
		TimeOfDay:          situCtx.TimeOfDay,
		MediaSnapshot:      mediaReq.Snapshot,
		MediaClip:          mediaReq.ClipSeconds > 0,
		ClipURL:            clipURL,
		SnapshotPath:       snapRes.StagingPath,
		Timestamp:          time.Now().UTC(),
	}

	if perr := runStage("FINAL_PUBLISHED", func() *pipelineError {
		if err := p.Publisher.PublishFinal(final); err != nil {
			return softErr("FINAL_PUBLISHED", err)
		}
		return nil
	}); perr != nil {
		log.Printf("[pipeline] event=%s %v", evt.EventID, perr)
	}

	if p.Memory != nil {
		if perr := runStage("MEMORY_APPEND", func() *pipelineError {
			rec := core.HistoryRecord{
				Timestamp:      final.Timestamp,
				Camera:         evt.Camera,
				RiskLevel:      decision.RiskLevel,
				EventType:      decision.EventType,
				RiskConfidence: decision.RiskConfidence,
				Action:         decision.Action,
			}
			if err := p.Memory.Append(rec); err != nil {
				return softErr("MEMORY_APPEND", err)
			}
			return nil
		}); perr != nil {
			log.Printf("[pipeline] event=%s %v", evt.EventID, perr)
		}
	}
}

// RunLoop drains events until ctx is canceled, running one Pipeline
// per accepted detection. Events across cameras interleave freely (no
// ordering guarantee beyond the per-camera cooldown Intake already
// enforces); one goroutine per event matches the suspension-point
// model — every stage blocks on IO, never on CPU work.
func RunLoop(ctx context.Context, events <-chan core.DetectionEvent, p *Pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			go p.Run(ctx, evt)
		}
	}
}
