package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sua-org/sentry-bridge/internal/core"
)

func TestScore_KnownDeliveryAtHomeClampsToLow(t *testing.T) {
	ai := core.Decision{RiskLevel: core.RiskLow, EventType: core.EventDelivery, Action: core.ActionNotifyOnly}
	ctx := core.Context{TimeOfDay: core.TimeDay, HomeMode: core.ModeHome, CameraZone: "entry"}

	out := Score(ai, ctx)

	assert.Equal(t, 0, out.RiskScore) // baseline 1 + zone 1 - delivery 2 = 0
	assert.Equal(t, core.RiskLow, out.RiskLevel)
	assert.Equal(t, core.ActionNotifyOnly, out.Action)
}

func TestScore_UnknownPersonAtNightAwayWithConcealmentEscalatesToCritical(t *testing.T) {
	ai := core.Decision{
		RiskLevel: core.RiskMedium,
		EventType: core.EventUnknownPerson,
		Action:    core.ActionNotifyOnly,
		Behavior:  "loitering near the gate, attempting concealment",
	}
	ctx := core.Context{TimeOfDay: core.TimeNight, HomeMode: core.ModeAway, CameraZone: "terrace"}

	out := Score(ai, ctx)

	// baseline 3 + unknown 2 + night 2 + zone 1 + away 3 + behavior bucket(capped 3) = 14
	assert.Equal(t, 14, out.RiskScore)
	assert.Equal(t, core.RiskCritical, out.RiskLevel)
	assert.Equal(t, core.ActionAlarm, out.Action)
}

func TestScore_KnownFacesPresentSuppressesScore(t *testing.T) {
	ai := core.Decision{RiskLevel: core.RiskHigh, EventType: core.EventKnownPerson, Action: core.ActionSpeaker}
	ctx := core.Context{TimeOfDay: core.TimeDay, HomeMode: core.ModeHome, KnownFacesPresent: true}

	out := Score(ai, ctx)

	// baseline 5 - known_faces 4 = 1
	assert.Equal(t, 1, out.RiskScore)
	assert.Equal(t, core.RiskLow, out.RiskLevel)
	assert.Equal(t, core.ActionNotifyOnly, out.Action)
}

func TestScore_PassiveBehaviorAloneSubtractsOne(t *testing.T) {
	ai := core.Decision{RiskLevel: core.RiskMedium, EventType: core.EventOther, Behavior: "just walking past"}
	ctx := core.Context{TimeOfDay: core.TimeDay, HomeMode: core.ModeHome}

	out := Score(ai, ctx)

	assert.Equal(t, 2, out.RiskScore) // baseline 3 - 1
}

func TestScore_AIStrongerActionOverridesBandDefaultWhenAtLeastMedium(t *testing.T) {
	ai := core.Decision{RiskLevel: core.RiskMedium, EventType: core.EventOther, Action: core.ActionAlarm}
	ctx := core.Context{TimeOfDay: core.TimeDay, HomeMode: core.ModeHome}

	out := Score(ai, ctx)

	assert.Equal(t, core.RiskMedium, out.RiskLevel)
	assert.Equal(t, core.ActionAlarm, out.Action) // AI's alarm beats the band default of save_clip
}

func TestScore_AIStrongerActionIgnoredWhenBandIsLow(t *testing.T) {
	ai := core.Decision{RiskLevel: core.RiskLow, EventType: core.EventDelivery, Action: core.ActionAlarm}
	ctx := core.Context{TimeOfDay: core.TimeDay, HomeMode: core.ModeHome}

	out := Score(ai, ctx)

	assert.Equal(t, core.RiskLow, out.RiskLevel)
	assert.Equal(t, core.ActionNotifyOnly, out.Action) // low band never honors a stronger AI action
}

func TestBandFor_Thresholds(t *testing.T) {
	cases := map[int]core.RiskLevel{
		0: core.RiskLow, 2: core.RiskLow,
		3: core.RiskMedium, 4: core.RiskMedium,
		5: core.RiskHigh, 6: core.RiskHigh,
		7: core.RiskCritical, 20: core.RiskCritical,
	}
	for score, want := range cases {
		assert.Equal(t, want, BandFor(score), "score=%d", score)
	}
}
