package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RunMarker persists the date of the last completed refresh as a dotfile
// under the data directory, so a restarted daemon does not redo a run it
// already finished that day.
type RunMarker struct {
	path string
}

// NewRunMarker returns a marker stored in dir.
func NewRunMarker(dir string) *RunMarker {
	return &RunMarker{path: filepath.Join(dir, ".last-refresh")}
}

// LastCompleted returns the date of the last completed run, or empty string.
func (m *RunMarker) LastCompleted() string {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsCompleted reports whether a run already completed on the given date.
func (m *RunMarker) IsCompleted(date string) bool {
	return m.LastCompleted() == date
}

// MarkCompleted records date as the last completed run.
func (m *RunMarker) MarkCompleted(date string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating marker dir: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(date+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	return nil
}
