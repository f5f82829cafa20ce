package vision

import (
	"errors"
	"strings"

	"github.com/sua-org/sentry-bridge/internal/core"
)

var errNoMatch = errors.New("vision: no json match")

var deliveryKeywords = []string{"package", "delivery", "parcel", "courier", "box left", "dropped off"}
var concealmentKeywords = []string{"loitering", "loiter", "concealment", "concealed", "mask", "hood", "covering face", "lurking"}

// fallbackDecision is the keyword-scan decision used when all four
// JSON extraction strategies fail. It never errors: the pipeline must
// always have a decision to score, even from an unparseable response.
func fallbackDecision(text string) core.Decision {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, concealmentKeywords):
		return core.Decision{
			RiskLevel:       core.RiskHigh,
			RiskConfidence:  0.4,
			RiskReason:      "fallback: keyword scan matched concealment/loitering language",
			EventType:       core.EventUnknownPerson,
			Action:          core.ActionNotifyOnly,
			SubjectIdentity: core.SubjectUnknown,
		}
	case containsAny(lower, deliveryKeywords):
		return core.Decision{
			RiskLevel:       core.RiskMedium,
			RiskConfidence:  0.4,
			RiskReason:      "fallback: keyword scan matched delivery language",
			EventType:       core.EventDelivery,
			Action:          core.ActionSaveClip,
			SubjectIdentity: core.SubjectUnknown,
		}
	default:
		return core.Decision{
			RiskLevel:       core.RiskLow,
			RiskConfidence:  0.2,
			RiskReason:      "fallback: keyword scan found no risk signal",
			EventType:       core.EventUnknownPerson,
			Action:          core.ActionNotifyOnly,
			SubjectIdentity: core.SubjectUnknown,
		}
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
