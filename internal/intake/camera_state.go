package intake

import (
	"sync"
	"time"
)

// cameraState is the process-lived per-camera state described in §3.
// Each camera gets its own mutex so cooldown checks on one camera
// never block another (§5 Shared-resource policy: "no global lock
// exists"). This mirrors the teacher supervisor's per-camera worker
// map guarded by a single coarse lock around map access, but with a
// per-entry lock for the hot field (last_alert_at).
type cameraState struct {
	mu           sync.Mutex
	lastAlertAt  time.Time
	rejectedCount uint64
}

// tryAccept reports whether an event for this camera at time now may
// proceed, given cooldown. On acceptance it atomically stamps
// lastAlertAt so a concurrent duplicate is rejected (Invariant 4,
// idempotence of duplicate messages within cooldown).
func (c *cameraState) tryAccept(now time.Time, cooldown time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastAlertAt.IsZero() && now.Sub(c.lastAlertAt) < cooldown {
		c.rejectedCount++
		return false
	}
	c.lastAlertAt = now
	return true
}

// registry is a map of camera name -> cameraState, each entry guarded
// independently. The registry's own mutex only protects insertion of
// new entries, never the hot path.
type registry struct {
	mu    sync.Mutex
	byCam map[string]*cameraState
}

func newRegistry() *registry {
	return &registry{byCam: make(map[string]*cameraState)}
}

func (r *registry) get(camera string) *cameraState {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.byCam[camera]
	if !ok {
		st = &cameraState{}
		r.byCam[camera] = st
	}
	return st
}
