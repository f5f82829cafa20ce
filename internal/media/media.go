// Package media implements the Media Decider: a pure lookup from risk
// band to what the Action Executor and Alert Formatter must attach.
package media

import "github.com/sua-org/sentry-bridge/internal/core"

// Requirement maps a risk_level to its media requirements (§4.7).
func Requirement(level core.RiskLevel) core.MediaRequirement {
	switch level {
	case core.RiskCritical:
		return core.MediaRequirement{Snapshot: true, ClipSeconds: 60, Monitoring: true}
	case core.RiskHigh:
		return core.MediaRequirement{Snapshot: true, ClipSeconds: 30, Monitoring: true}
	case core.RiskMedium:
		return core.MediaRequirement{Snapshot: true, ClipSeconds: 15}
	default:
		return core.MediaRequirement{Snapshot: true}
	}
}
