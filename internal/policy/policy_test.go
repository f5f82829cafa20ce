package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/core"
	"github.com/sua-org/sentry-bridge/internal/homehub"
	"github.com/sua-org/sentry-bridge/internal/memory"
)

func TestGather_PullsZoneHubStateAndRecentEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/states/sensor.home_mode":
			w.Write([]byte(`{"state":"away"}`))
		case "/api/states/binary_sensor.known_faces":
			w.Write([]byte(`{"state":"on"}`))
		}
	}))
	defer srv.Close()

	hub := homehub.New(srv.URL, "", "sensor.home_mode", "binary_sensor.known_faces", time.Minute, time.Second)

	memPath := filepath.Join(t.TempDir(), "history.jsonl")
	mem, err := memory.New(memPath, 100)
	require.NoError(t, err)
	require.NoError(t, mem.Append(core.HistoryRecord{Timestamp: time.Now(), Camera: "front_door"}))

	eng := New(hub, mem)

	cfg := &config.RuntimeConfig{
		EveningHour:               18,
		NightHour:                 22,
		RecentEventsWindowSeconds: 3600,
		Zones: map[string]config.ZoneConfig{
			"front_door": {Zone: "entry", Notes: "faces the street"},
		},
	}

	ctx := eng.Gather(context.Background(), "front_door", cfg)

	assert.Equal(t, core.ModeAway, ctx.HomeMode)
	assert.True(t, ctx.KnownFacesPresent)
	assert.Equal(t, "entry", ctx.CameraZone)
	assert.Equal(t, "faces the street", ctx.CameraNotes)
	assert.Equal(t, 1, ctx.RecentEvents)
}

func TestGather_HubFailureDoesNotBlockGather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hub := homehub.New(srv.URL, "", "sensor.home_mode", "binary_sensor.known_faces", time.Minute, time.Second)
	eng := New(hub, nil)

	cfg := &config.RuntimeConfig{EveningHour: 18, NightHour: 22}
	c := eng.Gather(context.Background(), "front_door", cfg)

	assert.Equal(t, core.ModeHome, c.HomeMode) // falls back to the "home" default
	assert.False(t, c.KnownFacesPresent)
}

func TestTimeOfDayFor_Bands(t *testing.T) {
	cfg := &config.RuntimeConfig{EveningHour: 18, NightHour: 22}
	assert.EqualValues(t, "day", cfg.TimeOfDayFor(10))
	assert.EqualValues(t, "evening", cfg.TimeOfDayFor(19))
	assert.EqualValues(t, "night", cfg.TimeOfDayFor(23))
}
