// Package snapshot implements the Snapshot Fetcher (§4.2): wait for
// NVR finalization, fetch the still image (falling back to the
// thumbnail), and persist it to both the detection store and the
// staging store.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/sua-org/sentry-bridge/internal/mediastore"
	"github.com/sua-org/sentry-bridge/internal/nvr"
)

// minValidBytes is the boundary named by the spec: a response body of
// exactly 1024 bytes is treated as invalid, 1025+ is valid.
const minValidBytes = 1025

// Result is what the fetcher hands to the Vision Client.
type Result struct {
	Bytes        []byte
	StagingPath  string // relative to the staging workspace root
	DetectionURL string // durable reference, e.g. in the media store
	UsedFallback bool   // true if the thumbnail had to be used
}

// Fetcher fetches and persists a detection's still image.
type Fetcher struct {
	nvr        *nvr.Client
	detection  mediastore.DetectionStore
	staging    *mediastore.Staging
}

// New builds a Fetcher.
func New(nvrClient *nvr.Client, detection mediastore.DetectionStore, staging *mediastore.Staging) *Fetcher {
	return &Fetcher{nvr: nvrClient, detection: detection, staging: staging}
}

// Fetch waits delay (cancellable via ctx) then retrieves the
// snapshot, falling back to the thumbnail if the snapshot is missing
// or 1 KiB (1024 bytes) or smaller. It fails if both fetches fail
// (§4.2) or if persisting to the detection or staging store fails.
func (f *Fetcher) Fetch(ctx context.Context, eventID string, delay time.Duration) (*Result, error) {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	data, err := f.nvr.FetchSnapshot(ctx, eventID)
	usedFallback := false
	if err != nil || len(data) < minValidBytes {
		thumb, thumbErr := f.nvr.FetchThumbnail(ctx, eventID)
		if thumbErr != nil || len(thumb) < minValidBytes {
			return nil, fmt.Errorf("snapshot: both snapshot and thumbnail fetch failed for %s: snapshot_err=%v thumbnail_err=%v", eventID, err, thumbErr)
		}
		data = thumb
		usedFallback = true
	}

	key := mediastore.SnapshotKey(eventID)

	detectionURL, err := f.detection.Save(ctx, key, data, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("snapshot: save to detection store: %w", err)
	}

	stagingPath, err := f.staging.Write(key, data)
	if err != nil {
		return nil, fmt.Errorf("snapshot: write staging copy: %w", err)
	}

	return &Result{
		Bytes:        data,
		StagingPath:  stagingPath,
		DetectionURL: detectionURL,
		UsedFallback: usedFallback,
	}, nil
}
