package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pfrederiksen/bamf-monitor/internal/exam"
)

// DefaultPath is the state file used when none is configured.
const DefaultPath = "state.json"

// Storage handles persistence of the monitoring state
type Storage struct {
	path string
}

// New creates a new Storage instance for the given state file path
func New(path string) (*Storage, error) {
	if path == "" {
		path = DefaultPath
	}

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	// Create parent directory if it doesn't exist
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	return &Storage{
		path: path,
	}, nil
}

// Path returns the resolved state file path
func (s *Storage) Path() string {
	return s.path
}

// Load reads the state from disk
func (s *Storage) Load() (*exam.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// No previous state, return defaults
			return exam.NewState(), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return exam.NewState(), nil
	}

	var state exam.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}

	return &state, nil
}

// Save overwrites the state file. The new content is written to a temp file in
// the same directory, synced, then renamed over the old file.
func (s *Storage) Save(state *exam.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing state: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting state permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}

	return nil
}
