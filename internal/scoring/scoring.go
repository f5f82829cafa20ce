// Package scoring implements the deterministic Severity Scorer: it
// takes the AI's proposed Decision and the gathered Context and
// re-derives risk_score, risk_level, and action from a fixed rule
// table so the same inputs always produce the same outputs. Grounded
// on the teacher's engines.Manager rule-table idiom (a slice of small
// predicate+effect structs evaluated in order) rather than a chain of
// if-statements.
package scoring

import (
	"strings"

	"github.com/sua-org/sentry-bridge/internal/core"
)

var baselineByRiskLevel = map[core.RiskLevel]int{
	core.RiskLow:      1,
	core.RiskMedium:   3,
	core.RiskHigh:      5,
	core.RiskCritical: 7,
}

// bandFor maps a risk_score to its risk_level band, the invariant
// "risk_level is always the band of risk_score". Score is its only
// caller; the Confirmation Controller compares bands with its own
// ordinal table and the vision sanitizer assigns no score.
func bandFor(score int) core.RiskLevel {
	switch {
	case score >= 7:
		return core.RiskCritical
	case score >= 5:
		return core.RiskHigh
	case score >= 3:
		return core.RiskMedium
	default:
		return core.RiskLow
	}
}

// BandFor is the exported form of bandFor for callers outside this
// package.
func BandFor(score int) core.RiskLevel { return bandFor(score) }

var concealmentKeywords = []string{"loitering", "concealment", "tools", "forcing", "climbing"}
var passiveKeywords = []string{"walking", "standing", "passing"}

type scoringRule struct {
	name    string
	matches func(ai core.Decision, ctx core.Context) bool
	delta   int
}

var rules = []scoringRule{
	{
		name:    "unknown_person",
		matches: func(ai core.Decision, ctx core.Context) bool { return ai.EventType == core.EventUnknownPerson },
		delta:   2,
	},
	{
		name:    "time_evening",
		matches: func(ai core.Decision, ctx core.Context) bool { return ctx.TimeOfDay == core.TimeEvening },
		delta:   1,
	},
	{
		name:    "time_night",
		matches: func(ai core.Decision, ctx core.Context) bool { return ctx.TimeOfDay == core.TimeNight },
		delta:   2,
	},
	{
		name:    "zone_high_risk",
		matches: func(ai core.Decision, ctx core.Context) bool { return isHighRiskZone(ctx.CameraZone) },
		delta:   1,
	},
	{
		name:    "home_mode_away",
		matches: func(ai core.Decision, ctx core.Context) bool { return ctx.HomeMode == core.ModeAway },
		delta:   3,
	},
	{
		name:    "home_mode_sleep",
		matches: func(ai core.Decision, ctx core.Context) bool { return ctx.HomeMode == core.ModeSleep },
		delta:   2,
	},
	{
		name:    "known_faces_present",
		matches: func(ai core.Decision, ctx core.Context) bool { return ctx.KnownFacesPresent },
		delta:   -4,
	},
	{
		name:    "event_delivery",
		matches: func(ai core.Decision, ctx core.Context) bool { return ai.EventType == core.EventDelivery },
		delta:   -2,
	},
}

var highRiskZones = map[string]bool{
	"entry":    true,
	"garage":   true,
	"terrace":  true,
	"door":     true,
}

func isHighRiskZone(zone string) bool {
	return highRiskZones[strings.ToLower(zone)]
}

// behaviorBucketDelta sums per-keyword deltas from the
// concealment/tools/forcing/climbing bucket, capped at +3, or returns
// -1 if only passive keywords (walking/standing/passing) matched and
// no concealment keyword did.
func behaviorBucketDelta(behavior string) int {
	lower := strings.ToLower(behavior)

	concealmentHits := 0
	for _, kw := range concealmentKeywords {
		if strings.Contains(lower, kw) {
			concealmentHits++
		}
	}
	if concealmentHits > 0 {
		delta := concealmentHits * 2
		if delta > 3 {
			delta = 3
		}
		return delta
	}

	for _, kw := range passiveKeywords {
		if strings.Contains(lower, kw) {
			return -1
		}
	}
	return 0
}

// Score is the pure, side-effect-free re-scoring function. Same
// inputs always produce the same output.
func Score(ai core.Decision, ctx core.Context) core.Decision {
	score := baselineByRiskLevel[ai.RiskLevel]

	for _, r := range rules {
		if r.matches(ai, ctx) {
			score += r.delta
		}
	}
	score += behaviorBucketDelta(ai.Behavior)

	if score < 0 {
		score = 0
	}

	band := bandFor(score)
	action := deriveAction(ai.Action, band)

	out := ai
	out.RiskScore = score
	out.RiskLevel = band
	out.Action = action
	return out
}

// deriveAction re-derives the action from the band unless the AI
// requested a strictly stronger action and the band is already
// medium or above.
func deriveAction(aiAction core.Action, band core.RiskLevel) core.Action {
	derived := defaultActionForBand(band)
	if band == core.RiskLow {
		return derived
	}
	if aiAction.Stronger(derived) {
		return aiAction
	}
	return derived
}

func defaultActionForBand(band core.RiskLevel) core.Action {
	switch band {
	case core.RiskCritical:
		return core.ActionAlarm
	case core.RiskHigh:
		return core.ActionSpeaker
	case core.RiskMedium:
		return core.ActionSaveClip
	default:
		return core.ActionNotifyOnly
	}
}
