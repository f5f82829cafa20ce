package homehub

import (
	"context"
	"log"

	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/core"
	"github.com/sua-org/sentry-bridge/internal/mediastore"
	"github.com/sua-org/sentry-bridge/internal/nvr"
)

// Executor is the Action Executor (§4.8): it reads a Decision plus its
// media requirement and issues the allowlisted hub/NVR calls.
type Executor struct {
	hub       *Client
	nvr       *nvr.Client
	detection mediastore.DetectionStore
	staging   *mediastore.Staging
}

// NewExecutor builds an Executor. detection/staging back the clip
// persisted when a decision's MediaRequirement calls for one; either
// may be nil, in which case the corresponding ClipRefs field is left
// empty.
func NewExecutor(hub *Client, nvrClient *nvr.Client, detection mediastore.DetectionStore, staging *mediastore.Staging) *Executor {
	return &Executor{hub: hub, nvr: nvrClient, detection: detection, staging: staging}
}

// ClipRefs is the durable URL and staging-relative path of a clip
// fetched during Execute, empty when no clip was required or the
// fetch failed.
type ClipRefs struct {
	URL  string
	Path string
}

// Execute runs the side effects for decision's action, gated by the
// zone's light entities, the alarm entity, and quiet hours, and
// independently retains+fetches a clip whenever mediaReq calls for
// one (§4.7/§4.8: the clip requirement is the Media Decider's call,
// not a function of which action fired). It never returns an error to
// the caller — every call failure is logged and the pipeline
// continues (§7: "hub failures never block messaging").
func (e *Executor) Execute(ctx context.Context, cfg *config.RuntimeConfig, eventID string, zone config.ZoneConfig, decision core.Decision, speech string, mediaReq core.MediaRequirement, inQuietHours bool) ClipRefs {
	action := decision.Action
	if !isAllowlisted(action) {
		log.Printf("[homehub] action %q not in allowlist, downgrading to notify_only", action)
		action = core.ActionNotifyOnly
	}

	var clips ClipRefs
	if mediaReq.ClipSeconds > 0 {
		clips = e.fetchClip(ctx, eventID)
	}

	switch action {
	case core.ActionNotifyOnly, core.ActionSaveClip:
		// save_clip's only side effect is the clip fetch above
	case core.ActionLight:
		e.turnOnLights(ctx, zone)
	case core.ActionSpeaker:
		e.playSpeaker(ctx, cfg, speech, decision.RiskLevel, inQuietHours)
	case core.ActionAlarm:
		e.turnOnLights(ctx, zone)
		e.playSpeaker(ctx, cfg, speech, decision.RiskLevel, inQuietHours)
		e.triggerAlarm(ctx, cfg, decision.RiskLevel, inQuietHours)
	}

	return clips
}

// fetchClip marks eventID for retention on the NVR, downloads the
// clip, and persists it to both the detection store and the staging
// store, mirroring the Snapshot Fetcher's dual-persist pattern. Any
// failure along the way is logged and yields a partially- or
// fully-empty ClipRefs rather than blocking the rest of Execute.
func (e *Executor) fetchClip(ctx context.Context, eventID string) ClipRefs {
	if e.nvr == nil {
		return ClipRefs{}
	}

	if err := e.nvr.Retain(ctx, eventID); err != nil {
		log.Printf("[homehub] clip retain failed for %s: %v", eventID, err)
	}

	data, err := e.nvr.FetchClip(ctx, eventID)
	if err != nil {
		log.Printf("[homehub] clip fetch failed for %s: %v", eventID, err)
		return ClipRefs{}
	}

	key := mediastore.ClipKey(eventID)
	var clips ClipRefs

	if e.detection != nil {
		url, err := e.detection.Save(ctx, key, data, "video/mp4")
		if err != nil {
			log.Printf("[homehub] clip save to detection store failed for %s: %v", eventID, err)
		} else {
			clips.URL = url
		}
	}

	if e.staging != nil {
		path, err := e.staging.Write(key, data)
		if err != nil {
			log.Printf("[homehub] clip staging write failed for %s: %v", eventID, err)
		} else {
			clips.Path = path
		}
	}

	return clips
}

func isAllowlisted(a core.Action) bool {
	switch a {
	case core.ActionNotifyOnly, core.ActionSaveClip, core.ActionLight, core.ActionSpeaker, core.ActionAlarm:
		return true
	default:
		return false
	}
}

func (e *Executor) turnOnLights(ctx context.Context, zone config.ZoneConfig) {
	for _, entity := range zone.LightEntities {
		if err := e.hub.CallService(ctx, "light", "turn_on", entity, nil); err != nil {
			log.Printf("[homehub] light.turn_on %s failed: %v", entity, err)
		}
	}
}

// skipsAudible reports whether speaker/alarm calls should be skipped:
// in quiet hours unless the risk is critical (§4.8/§7/Invariant 5).
func skipsAudible(inQuietHours bool, level core.RiskLevel) bool {
	return inQuietHours && level != core.RiskCritical
}

func (e *Executor) playSpeaker(ctx context.Context, cfg *config.RuntimeConfig, speech string, level core.RiskLevel, inQuietHours bool) {
	if skipsAudible(inQuietHours, level) {
		log.Printf("[homehub] speaker call skipped: quiet hours, risk=%s", level)
		return
	}
	data := map[string]interface{}{
		"message": speech,
	}
	if err := e.hub.CallService(ctx, "media_player", "play_media", cfg.SpeakerEntity, data); err != nil {
		log.Printf("[homehub] media_player.play_media failed: %v", err)
	}
}

func (e *Executor) triggerAlarm(ctx context.Context, cfg *config.RuntimeConfig, level core.RiskLevel, inQuietHours bool) {
	if skipsAudible(inQuietHours, level) {
		log.Printf("[homehub] alarm call skipped: quiet hours, risk=%s", level)
		return
	}
	if err := e.hub.CallService(ctx, "switch", "turn_on", cfg.AlarmEntity, nil); err != nil {
		log.Printf("[homehub] switch.turn_on (alarm) failed: %v", err)
	}
}
