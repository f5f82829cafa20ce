// internal/core/types.go
// Package core holds the data model shared across the pipeline: the
// transient detection event, the scored decision, the gathered
// context, and the media/memory value objects derived from them.
package core

import "time"

// RiskLevel is one of the four severity bands. Every producer of a
// RiskLevel must keep it consistent with RiskScore's band (bandFor in
// the scoring package); components never invent their own banding.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// EventType classifies the subject of a detection.
type EventType string

const (
	EventUnknownPerson EventType = "unknown_person"
	EventKnownPerson   EventType = "known_person"
	EventDelivery      EventType = "delivery"
	EventVehicle       EventType = "vehicle"
	EventAnimal        EventType = "animal"
	EventLoitering     EventType = "loitering"
	EventOther         EventType = "other"
)

// Action is the closed enumeration of side effects the bridge may
// trigger. Anything outside this set is silently downgraded to
// ActionNotifyOnly (by the vision sanitizer and the Action Executor).
type Action string

const (
	ActionNotifyOnly Action = "notify_only"
	ActionSaveClip   Action = "notify_and_save_clip"
	ActionLight      Action = "notify_and_light"
	ActionSpeaker    Action = "notify_and_speaker"
	ActionAlarm      Action = "notify_and_alarm"
)

var actionStrength = map[Action]int{
	ActionNotifyOnly: 0,
	ActionSaveClip:   1,
	ActionLight:      2,
	ActionSpeaker:    3,
	ActionAlarm:      4,
}

// Stronger reports whether a is strictly stronger than b. Unknown
// actions rank weakest.
func (a Action) Stronger(b Action) bool {
	return actionStrength[a] > actionStrength[b]
}

// SubjectIdentity is known|unknown.
type SubjectIdentity string

const (
	SubjectKnown   SubjectIdentity = "known"
	SubjectUnknown SubjectIdentity = "unknown"
)

// TimeOfDay is day|evening|night, derived from local hour against the
// configured evening/night hour bands and quiet-hours window.
type TimeOfDay string

const (
	TimeDay     TimeOfDay = "day"
	TimeEvening TimeOfDay = "evening"
	TimeNight   TimeOfDay = "night"
)

// HomeMode is the smart-home hub's occupancy mode.
type HomeMode string

const (
	ModeHome  HomeMode = "home"
	ModeAway  HomeMode = "away"
	ModeSleep HomeMode = "sleep"
	ModeGuest HomeMode = "guest"
)

// DetectionEvent is the transient record created by Intake on every
// accepted bus message and destroyed once the pipeline exits.
type DetectionEvent struct {
	EventID   string
	Camera    string
	Label     string
	Score     float64
	StartTime time.Time
}

// Decision is the value object produced by the Vision Client and
// refined by the Severity Scorer and Confirmation Controller.
type Decision struct {
	RiskLevel          RiskLevel
	RiskScore          int
	RiskConfidence     float64
	RiskReason         string
	EventType          EventType
	Action             Action
	SubjectIdentity    SubjectIdentity
	SubjectDescription string
	Behavior           string
}

// Context is the per-event situational snapshot gathered by the
// Policy Engine.
type Context struct {
	TimeOfDay         TimeOfDay
	HomeMode          HomeMode
	KnownFacesPresent bool
	CameraZone        string
	CameraNotes       string
	RecentEvents      int
}

// MediaRequirement is the Media Decider's output: what the Action
// Executor and Alert Formatter must include for a given risk band.
type MediaRequirement struct {
	Snapshot    bool
	ClipSeconds int
	Monitoring  bool
}

// HistoryRecord is one append-only line in the event memory store.
type HistoryRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Camera         string    `json:"camera"`
	RiskLevel      RiskLevel `json:"risk_level"`
	EventType      EventType `json:"event_type"`
	RiskConfidence float64   `json:"risk_confidence"`
	Action         Action    `json:"action"`
}

// AlertMessage is the structured chat body plus the short speech
// string, produced by the Alert Formatter.
type AlertMessage struct {
	Body         string
	Speech       string
	SnapshotPath string
	ClipPath     string
}

// AnalysisPayload is the outbound bus message shape (§6 of the spec):
// one JSON object per pending/final publication on <prefix>/analysis.
type AnalysisPayload struct {
	EventID            string    `json:"event_id"`
	Camera             string    `json:"camera"`
	Label              string    `json:"label"`
	Risk               RiskLevel `json:"risk"`
	RiskScore          int       `json:"risk_score"`
	RiskConfidence     float64   `json:"risk_confidence"`
	EventType          EventType `json:"event_type"`
	Action             Action    `json:"action"`
	Analysis           string    `json:"analysis"`
	TTS                string    `json:"tts"`
	Behavior           string    `json:"behavior"`
	SubjectIdentity    string    `json:"subject_identity"`
	SubjectDescription string    `json:"subject_description"`
	CameraZone         string    `json:"camera_zone"`
	HomeMode           HomeMode  `json:"home_mode"`
	TimeOfDay          TimeOfDay `json:"time_of_day"`
	MediaSnapshot      bool      `json:"media_snapshot"`
	MediaClip          bool      `json:"media_clip"`
	ClipURL            *string   `json:"clip_url"`
	SnapshotPath       string    `json:"snapshot_path"`
	Timestamp          time.Time `json:"timestamp"`
}
