package vision

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/sua-org/sentry-bridge/internal/core"
)

// decisionRaw is the loosely-typed shape extracted from the vision
// model's prose. Fields are strings/json.Number because models are
// inconsistent about quoting numbers and casing enums; sanitize()
// narrows this into a core.Decision.
type decisionRaw struct {
	RiskLevel          string      `json:"risk_level"`
	RiskConfidence     json.Number `json:"risk_confidence"`
	RiskReason         string      `json:"risk_reason"`
	EventType          string      `json:"event_type"`
	Action             string      `json:"action"`
	SubjectIdentity    string      `json:"subject_identity"`
	SubjectDescription string      `json:"subject_description"`
	Behavior           string      `json:"behavior"`

	// nested shape: {"risk": {"level": ..., "confidence": ..., "reason": ...}}
	Risk *struct {
		Level      string      `json:"level"`
		Confidence json.Number `json:"confidence"`
		Reason     string      `json:"reason"`
	} `json:"risk"`
}

// UnmarshalJSON tries the flat shape first, then falls back to
// promoting the nested "risk" object's fields if the flat ones are
// empty. Vision models are inconsistent about which shape they emit.
func (d *decisionRaw) UnmarshalJSON(data []byte) error {
	type plain decisionRaw
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = decisionRaw(p)

	if d.Risk != nil {
		if d.RiskLevel == "" {
			d.RiskLevel = d.Risk.Level
		}
		if d.RiskReason == "" {
			d.RiskReason = d.Risk.Reason
		}
		if d.RiskConfidence.String() == "" {
			d.RiskConfidence = d.Risk.Confidence
		}
	}
	return nil
}

var validEventTypes = map[core.EventType]bool{
	core.EventUnknownPerson: true,
	core.EventKnownPerson:   true,
	core.EventDelivery:      true,
	core.EventVehicle:       true,
	core.EventAnimal:        true,
	core.EventLoitering:     true,
	core.EventOther:         true,
}

var validActions = map[core.Action]bool{
	core.ActionNotifyOnly: true,
	core.ActionSaveClip:   true,
	core.ActionLight:      true,
	core.ActionSpeaker:    true,
	core.ActionAlarm:      true,
}

var validRiskLevels = map[core.RiskLevel]bool{
	core.RiskLow:      true,
	core.RiskMedium:   true,
	core.RiskHigh:      true,
	core.RiskCritical: true,
}

// sanitize narrows a decisionRaw into a core.Decision: confidence
// clamped to [0,1], enums lowercased, unknown values defaulted.
func (d *decisionRaw) sanitize() core.Decision {
	level := core.RiskLevel(strings.ToLower(strings.TrimSpace(d.RiskLevel)))
	if !validRiskLevels[level] {
		level = core.RiskLow
	}

	conf, _ := d.RiskConfidence.Float64()
	conf = math.Max(0, math.Min(1, conf))

	evType := core.EventType(strings.ToLower(strings.TrimSpace(d.EventType)))
	if !validEventTypes[evType] {
		evType = core.EventOther
	}

	action := core.Action(strings.ToLower(strings.TrimSpace(d.Action)))
	if !validActions[action] {
		action = core.ActionNotifyOnly
	}

	identity := core.SubjectIdentity(strings.ToLower(strings.TrimSpace(d.SubjectIdentity)))
	if identity != core.SubjectKnown {
		identity = core.SubjectUnknown
	}

	return core.Decision{
		RiskLevel:          level,
		RiskConfidence:     conf,
		RiskReason:         strings.TrimSpace(d.RiskReason),
		EventType:          evType,
		Action:             action,
		SubjectIdentity:    identity,
		SubjectDescription: strings.TrimSpace(d.SubjectDescription),
		Behavior:           strings.TrimSpace(d.Behavior),
	}
}
