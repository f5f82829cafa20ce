package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sua-org/sentry-bridge/internal/core"
)

func TestRequirement_MatchesBandTable(t *testing.T) {
	cases := []struct {
		level core.RiskLevel
		want  core.MediaRequirement
	}{
		{core.RiskLow, core.MediaRequirement{Snapshot: true}},
		{core.RiskMedium, core.MediaRequirement{Snapshot: true, ClipSeconds: 15}},
		{core.RiskHigh, core.MediaRequirement{Snapshot: true, ClipSeconds: 30, Monitoring: true}},
		{core.RiskCritical, core.MediaRequirement{Snapshot: true, ClipSeconds: 60, Monitoring: true}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Requirement(c.level), "level=%s", c.level)
	}
}
