package mediastore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Staging writes a local copy of a snapshot/clip under a workspace
// directory and hands back a path relative to that workspace root —
// the agent gateway rejects absolute media references (§4.2).
type Staging struct {
	workspaceRoot string
	subdir        string
}

// NewStaging builds a Staging rooted at workspaceRoot/subdir, creating
// the directory if needed.
func NewStaging(workspaceRoot, subdir string) (*Staging, error) {
	dir := filepath.Join(workspaceRoot, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mediastore: create staging dir %s: %w", dir, err)
	}
	return &Staging{workspaceRoot: workspaceRoot, subdir: subdir}, nil
}

// Write saves data to "<subdir>/<name>" and returns the path relative
// to the workspace root.
func (s *Staging) Write(name string, data []byte) (string, error) {
	relPath := filepath.Join(s.subdir, name)
	fullPath := filepath.Join(s.workspaceRoot, relPath)

	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("mediastore: write %s: %w", fullPath, err)
	}
	return relPath, nil
}

// SnapshotKey and ClipKey build the object/file names used
// consistently by both the detection store and staging store.
func SnapshotKey(eventID string) string { return fmt.Sprintf("%s.jpg", eventID) }
func ClipKey(eventID string) string     { return fmt.Sprintf("%s.mp4", eventID) }
