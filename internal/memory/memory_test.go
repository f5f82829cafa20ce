package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sua-org/sentry-bridge/internal/core"
)

func newStore(t *testing.T, maxLines int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := New(path, maxLines)
	require.NoError(t, err)
	return s
}

func TestAppendAndCountSince(t *testing.T) {
	s := newStore(t, 100)

	now := time.Now()
	require.NoError(t, s.Append(core.HistoryRecord{Timestamp: now.Add(-5 * time.Minute), Camera: "front_door", RiskLevel: core.RiskLow}))
	require.NoError(t, s.Append(core.HistoryRecord{Timestamp: now.Add(-1 * time.Minute), Camera: "front_door", RiskLevel: core.RiskMedium}))
	require.NoError(t, s.Append(core.HistoryRecord{Timestamp: now.Add(-1 * time.Minute), Camera: "backyard", RiskLevel: core.RiskLow}))

	count, err := s.CountSince("front_door", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.CountSince("front_door", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAppend_EnforcesMaxLinesDroppingOldest(t *testing.T) {
	s := newStore(t, 3)

	now := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(core.HistoryRecord{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Camera:    "front_door",
		}))
	}

	count, err := s.CountSince("front_door", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "only the 3 most recent records should remain")
}

func TestCountSince_TolerantOfTruncatedLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := New(path, 100)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.Append(core.HistoryRecord{Timestamp: now, Camera: "front_door"}))

	// simulate a crash mid-append: append a non-JSON partial line directly.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"timestamp":"2026-01-01T00:00:00Z","camera":"back`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	count, err := s.CountSince("front_door", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
