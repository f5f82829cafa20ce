package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sua-org/sentry-bridge/internal/core"
)

func TestFormat_IncludesAllEightSections(t *testing.T) {
	d := core.Decision{
		RiskLevel:          core.RiskHigh,
		RiskScore:          5,
		RiskConfidence:     0.8,
		RiskReason:         "unknown person near entry at night",
		Action:             core.ActionSpeaker,
		SubjectIdentity:    core.SubjectUnknown,
		SubjectDescription: "person in dark hoodie",
		Behavior:           "loitering near the gate",
	}
	ctx := core.Context{TimeOfDay: core.TimeNight, HomeMode: core.ModeAway, CameraZone: "entry", RecentEvents: 2}
	media := core.MediaRequirement{Snapshot: true, ClipSeconds: 30, Monitoring: true}

	msg := Format("front_door", d, ctx, media, time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC), "ai-snapshots/evt-1.jpg", "ai-snapshots/evt-1.mp4")

	for _, section := range []string{"EVENT", "SUBJECT", "BEHAVIOR", "RISK", "CONTEXT", "ACTION", "MEDIA", "ESCALATION"} {
		assert.Contains(t, msg.Body, section)
	}
	assert.Contains(t, msg.Body, "🟠")
	assert.Contains(t, msg.Body, "entry")
	assert.Contains(t, msg.Body, "loitering near the gate")
	assert.Equal(t, "ai-snapshots/evt-1.jpg", msg.SnapshotPath)
	assert.Equal(t, "ai-snapshots/evt-1.mp4", msg.ClipPath)
}

func TestFormat_EmptyClipPathWhenNoClipWasFetched(t *testing.T) {
	d := core.Decision{RiskLevel: core.RiskLow, Action: core.ActionNotifyOnly}
	media := core.MediaRequirement{Snapshot: true}

	msg := Format("backyard", d, core.Context{}, media, time.Now(), "ai-snapshots/evt-2.jpg", "")

	assert.Equal(t, "ai-snapshots/evt-2.jpg", msg.SnapshotPath)
	assert.Empty(t, msg.ClipPath)
}

func TestFormat_EmptySectionsGetPlaceholder(t *testing.T) {
	d := core.Decision{RiskLevel: core.RiskLow, Action: core.ActionNotifyOnly, SubjectIdentity: core.SubjectUnknown}
	ctx := core.Context{}
	media := core.MediaRequirement{Snapshot: true}

	msg := Format("backyard", d, ctx, media, time.Now(), "", "")

	assert.Contains(t, msg.Body, "(none)")
}

func TestFormat_SpeechIsAtMostTwoSentences(t *testing.T) {
	d := core.Decision{
		RiskLevel:       core.RiskCritical,
		SubjectIdentity: core.SubjectUnknown,
		Behavior:        "forcing the side door",
		RiskReason:      "tool use detected",
	}
	msg := Format("garage", d, core.Context{}, core.MediaRequirement{}, time.Now(), "", "")

	sentences := strings.Count(msg.Speech, ".")
	assert.LessOrEqual(t, sentences, 2)
	assert.Contains(t, msg.Speech, "garage")
	assert.Contains(t, msg.Speech, "forcing the side door")
}

func TestFormat_NoMonitoringMeansNoEscalationCondition(t *testing.T) {
	d := core.Decision{RiskLevel: core.RiskMedium, Action: core.ActionSaveClip}
	msg := Format("driveway", d, core.Context{}, core.MediaRequirement{Snapshot: true, ClipSeconds: 15}, time.Now(), "", "")
	assert.Contains(t, msg.Body, "ESCALATION\n(none)")
}
