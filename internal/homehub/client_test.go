package homehub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CachesWithinTTL(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Path {
		case "/api/states/sensor.home_mode":
			w.Write([]byte(`{"state":"away"}`))
		case "/api/states/binary_sensor.known_faces":
			w.Write([]byte(`{"state":"on"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", "sensor.home_mode", "binary_sensor.known_faces", 50*time.Millisecond, time.Second)

	s1, err := c.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "away", s1.HomeMode)
	assert.True(t, s1.KnownFacesPresent)

	_, err = c.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "second call within TTL should be served from cache")

	time.Sleep(60 * time.Millisecond)
	_, err = c.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, calls, "call after TTL expiry should refetch both sensors")
}

func TestCallService_RetriesOnceOnTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "", "", time.Minute, time.Second)
	err := c.CallService(context.Background(), "light", "turn_on", "light.porch", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestCallService_NoRetryOn4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "", "", time.Minute, time.Second)
	err := c.CallService(context.Background(), "light", "turn_on", "light.porch", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
