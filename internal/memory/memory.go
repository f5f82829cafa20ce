// Package memory implements the Event Memory store: an append-only
// line-delimited JSON file of HistoryRecords, guarded by flock(2) —
// exclusive for the write region, shared for reads — per the
// concurrency model's shared-resource policy. golang.org/x/sys/unix
// is already pulled in transitively via gopsutil; this package is the
// first to import it directly.
package memory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sua-org/sentry-bridge/internal/core"
)

// Store owns the history file path. Safe for concurrent use: each
// operation takes its own OS-level file lock so multiple processes
// (not just goroutines) can never interleave writes.
type Store struct {
	path     string
	maxLines int
	mu       sync.Mutex // serializes this process's own writers before they contend for flock
}

// New builds a Store rooted at path, creating an empty file if absent.
func New(path string, maxLines int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("memory: create %s: %w", path, err)
	}
	f.Close()
	return &Store{path: path, maxLines: maxLines}, nil
}

// Append writes one HistoryRecord as a single JSON line, then
// enforces maxLines by rewriting the file dropping the oldest entries
// if it now exceeds the cap.
func (s *Store) Append(rec core.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory: marshal record: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("memory: open %s: %w", s.path, err)
	}
	defer f.Close()

	if err := flockExclusive(f); err != nil {
		return fmt.Errorf("memory: lock %s: %w", s.path, err)
	}
	defer unlock(f)

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("memory: append %s: %w", s.path, err)
	}

	return s.enforceMaxLinesLocked()
}

// CountSince returns the number of HistoryRecords for camera with a
// timestamp at or after now-window.
func (s *Store) CountSince(camera string, window time.Duration) (int, error) {
	cutoff := time.Now().Add(-window)

	records, err := s.readAll()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range records {
		if r.Camera == camera && !r.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *Store) readAll() ([]core.HistoryRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", s.path, err)
	}
	defer f.Close()

	if err := flockShared(f); err != nil {
		return nil, fmt.Errorf("memory: shared lock %s: %w", s.path, err)
	}
	defer unlock(f)

	return parseRecords(f)
}

// enforceMaxLinesLocked rewrites the file keeping only the most recent
// maxLines records. Caller must already hold the exclusive lock on a
// writable handle to the same path.
func (s *Store) enforceMaxLinesLocked() error {
	records, err := s.readAllUnlocked()
	if err != nil {
		return err
	}
	if len(records) <= s.maxLines {
		return nil
	}

	trimmed := records[len(records)-s.maxLines:]

	tmp, err := os.CreateTemp("", "event-memory-*.jsonl")
	if err != nil {
		return fmt.Errorf("memory: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, r := range trimmed {
		line, err := json.Marshal(r)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("memory: marshal record during trim: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("memory: write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("memory: flush temp file: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("memory: replace %s: %w", s.path, err)
	}
	return nil
}

// readAllUnlocked reads without taking its own lock, for use by
// enforceMaxLinesLocked which already holds the exclusive lock.
func (s *Store) readAllUnlocked() ([]core.HistoryRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", s.path, err)
	}
	return parseRecords(bytes.NewReader(data))
}

// parseRecords scans r line by line, tolerating a truncated/partial
// last line (the common shape of a crash mid-append): a malformed
// line is only skipped if it is the final one.
func parseRecords(r io.Reader) ([]core.HistoryRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("memory: scan: %w", err)
	}

	var records []core.HistoryRecord
	for i, line := range lines {
		var rec core.HistoryRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			if i == len(lines)-1 {
				continue
			}
			return nil, fmt.Errorf("memory: malformed record at line %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func flockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

func flockShared(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_SH)
}

func unlock(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
