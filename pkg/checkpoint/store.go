// Package checkpoint persists completion markers for provisioning steps.
//
// The on-disk layout is one file per completed step, named
// "<step_name>.done" and containing an RFC 3339 timestamp, under a fixed
// root directory. Presence of the file means the step completed; absence
// means it is pending. Markers are written to a temp file and renamed
// into place, so a crash mid-write leaves either no marker or a complete
// one. A marker that exists but is unreadable still counts as "exists":
// the timestamp is informational, the file name is the record.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const markerSuffix = ".done"

// Checkpoint is one completed-step record.
type Checkpoint struct {
	Step        string
	CompletedAt time.Time
}

// Store is a file-backed checkpoint store rooted at a single directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. Call Init before first use.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the checkpoint root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Init ensures the checkpoint directory exists. Failure is reported but
// is never fatal for the overall run: an unusable store degrades the
// tool to re-running every step, not to corrupting state.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory %s: %w", s.dir, err)
	}
	return nil
}

// Exists reports whether a marker file for the named step is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.markerPath(name))
	return err == nil
}

// Mark writes the completion marker for the named step, overwriting any
// existing marker. The write goes through a temp file and a rename.
func (s *Store) Mark(name string) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}

	_, err = tmp.WriteString(time.Now().UTC().Format(time.RFC3339) + "\n")
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint for %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), s.markerPath(name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to place checkpoint for %s: %w", name, err)
	}
	return nil
}

// CompletedAt returns the recorded completion time for the named step.
// The second return is false when no readable marker exists.
func (s *Store) CompletedAt(name string) (time.Time, bool) {
	data, err := os.ReadFile(s.markerPath(name))
	if err != nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Clear deletes the marker for the named step, forcing re-execution on
// the next run. Clearing an absent marker is not an error.
func (s *Store) Clear(name string) error {
	if err := os.Remove(s.markerPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear checkpoint for %s: %w", name, err)
	}
	return nil
}

// ClearAll deletes every marker in the store.
func (s *Store) ClearAll() error {
	cps, err := s.List()
	if err != nil {
		return err
	}
	for _, cp := range cps {
		if err := s.Clear(cp.Step); err != nil {
			return err
		}
	}
	return nil
}

// List returns all completed steps, sorted by name. Unreadable markers
// are included with a zero timestamp.
func (s *Store) List() ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var cps []Checkpoint
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), markerSuffix) {
			continue
		}
		step := strings.TrimSuffix(e.Name(), markerSuffix)
		ts, _ := s.CompletedAt(step)
		cps = append(cps, Checkpoint{Step: step, CompletedAt: ts})
	}

	sort.Slice(cps, func(i, j int) bool { return cps[i].Step < cps[j].Step })
	return cps, nil
}

func (s *Store) markerPath(name string) string {
	return filepath.Join(s.dir, name+markerSuffix)
}
