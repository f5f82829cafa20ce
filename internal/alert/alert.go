// Package alert implements the Alert Formatter: it turns a scored
// Decision, its Context, and its MediaRequirement into the fixed
// eight-section chat body plus a short TTS speech string. Built with
// plain strings.Builder, matching the teacher's preference for manual
// string/map assembly (supervisor.publishHADiscovery) over a
// templating library anywhere in the corpus.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/sua-org/sentry-bridge/internal/core"
)

var severityGlyph = map[core.RiskLevel]string{
	core.RiskLow:      "🟢",
	core.RiskMedium:   "🟡",
	core.RiskHigh:      "🟠",
	core.RiskCritical: "🔴",
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func placeholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// Format builds the AlertMessage for one event. snapshotPath and
// clipPath are the staging-relative media references already
// persisted upstream (Snapshot Fetcher and Action Executor
// respectively); clipPath is empty when media.ClipSeconds == 0 or the
// clip fetch failed.
func Format(camera string, d core.Decision, ctx core.Context, media core.MediaRequirement, localTime time.Time, snapshotPath, clipPath string) core.AlertMessage {
	glyph := severityGlyph[d.RiskLevel]
	if glyph == "" {
		glyph = severityGlyph[core.RiskLow]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s — %s\n\n", glyph, strings.ToUpper(string(d.RiskLevel)), camera)

	fmt.Fprintf(&b, "EVENT\n%s at %s, zone %s\n\n", camera, localTime.Format("2006-01-02 15:04:05 MST"), placeholder(ctx.CameraZone))

	fmt.Fprintf(&b, "SUBJECT\n%s: %s\n\n", capitalize(string(d.SubjectIdentity)), placeholder(d.SubjectDescription))

	fmt.Fprintf(&b, "BEHAVIOR\n%s\n\n", placeholder(d.Behavior))

	fmt.Fprintf(&b, "RISK\nlevel=%s score=%d confidence=%.2f\nreason: %s\n\n",
		d.RiskLevel, d.RiskScore, d.RiskConfidence, placeholder(d.RiskReason))

	fmt.Fprintf(&b, "CONTEXT\nhome_mode=%s known_faces_present=%t time_of_day=%s recent_events=%d\n\n",
		ctx.HomeMode, ctx.KnownFacesPresent, ctx.TimeOfDay, ctx.RecentEvents)

	fmt.Fprintf(&b, "ACTION\n%s\n\n", d.Action)

	fmt.Fprintf(&b, "MEDIA\nsnapshot=%t clip_seconds=%d monitoring=%t\n\n",
		media.Snapshot, media.ClipSeconds, media.Monitoring)

	fmt.Fprintf(&b, "ESCALATION\n%s\n", escalationCondition(media))

	return core.AlertMessage{
		Body:         b.String(),
		Speech:       Speech(d, camera),
		SnapshotPath: snapshotPath,
		ClipPath:     clipPath,
	}
}

// escalationCondition names the condition under which monitoring
// would push this decision to the next band up.
func escalationCondition(media core.MediaRequirement) string {
	if !media.Monitoring {
		return "(none)"
	}
	return fmt.Sprintf("upgrades to the next risk band if subject remains present beyond %ds", media.ClipSeconds)
}

// Speech joins severity+camera+subject+behavior+reason into at most
// two sentences. Exported so the Action Executor's notify_and_speaker
// call can use the exact same TTS body Format embeds in AlertMessage,
// computed before the Action Executor runs (Format itself runs after,
// once the clip path is known).
func Speech(d core.Decision, camera string) string {
	subject := string(d.SubjectIdentity)
	if d.SubjectDescription != "" {
		subject = d.SubjectDescription
	}

	first := fmt.Sprintf("%s risk detected on %s: %s.", strings.ToUpper(string(d.RiskLevel)), camera, subject)

	second := ""
	switch {
	case d.Behavior != "" && d.RiskReason != "":
		second = fmt.Sprintf(" Behavior: %s; %s.", d.Behavior, d.RiskReason)
	case d.Behavior != "":
		second = fmt.Sprintf(" Behavior: %s.", d.Behavior)
	case d.RiskReason != "":
		second = fmt.Sprintf(" %s.", d.RiskReason)
	}

	return first + second
}
