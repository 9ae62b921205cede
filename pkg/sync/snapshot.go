package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/sdejongh/robinhood/pkg/compare"
)

// PairState is the persisted record of a source/destination pair between runs
type PairState struct {
	// Version for state file format compatibility
	Version int `json:"version"`

	// SourcePath and DestPath identify the sync pair
	SourcePath string `json:"source_path"`
	DestPath   string `json:"dest_path"`

	// LastSyncTime is when the last run that saved this state completed
	LastSyncTime time.Time `json:"last_sync_time"`
	LastRunID    string    `json:"last_run_id,omitempty"`

	// Baseline lists the paths present on both sides after that run
	Baseline *compare.Baseline `json:"baseline"`
}

const stateFileVersion = 1

// NewPairState creates a new empty state
func NewPairState(sourcePath, destPath string) *PairState {
	return &PairState{
		Version:    stateFileVersion,
		SourcePath: sourcePath,
		DestPath:   destPath,
		Baseline:   compare.NewBaseline(),
	}
}

// IsFirstSync returns true if no run has been recorded for the pair
func (s *PairState) IsFirstSync() bool {
	return s.LastSyncTime.IsZero()
}

// StateStore keeps one state file per pair under a directory
type StateStore struct {
	fs  afero.Fs
	dir string
}

// NewStateStore creates a store. A nil fs uses the OS filesystem and an
// empty dir uses DefaultStateDir.
func NewStateStore(fs afero.Fs, dir string) *StateStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = DefaultStateDir()
	}
	return &StateStore{fs: fs, dir: dir}
}

// DefaultStateDir is the state directory inside the user's config directory
func DefaultStateDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir, _ = os.UserHomeDir()
		configDir = filepath.Join(configDir, ".config")
	}
	return filepath.Join(configDir, "robinhood", "state")
}

// Path returns the state file of a pair
func (s *StateStore) Path(sourcePath, destPath string) string {
	return filepath.Join(s.dir, hashPaths(sourcePath, destPath)+".json")
}

// Load reads the state of a pair. A missing file gives a new empty state.
func (s *StateStore) Load(sourcePath, destPath string) (*PairState, error) {
	data, err := afero.ReadFile(s.fs, s.Path(sourcePath, destPath))
	if err != nil {
		if os.IsNotExist(err) {
			return NewPairState(sourcePath, destPath), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state PairState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Version > stateFileVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", state.Version, stateFileVersion)
	}
	if state.Baseline == nil {
		state.Baseline = compare.NewBaseline()
	}
	if state.Baseline.Paths == nil {
		state.Baseline.Paths = make(map[string]compare.BaselineEntry)
	}
	return &state, nil
}

// Save persists the state atomically through a temporary file
func (s *StateStore) Save(state *PairState) error {
	statePath := s.Path(state.SourcePath, state.DestPath)

	if err := s.fs.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := statePath + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, statePath); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to finalize state file: %w", err)
	}
	return nil
}

// Clear removes the state file of a pair
func (s *StateStore) Clear(sourcePath, destPath string) error {
	err := s.fs.Remove(s.Path(sourcePath, destPath))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// hashPaths creates a deterministic FNV-1a identifier for a source/dest pair
func hashPaths(source, dest string) string {
	h := uint64(14695981039346656037)
	for _, c := range filepath.Clean(source) + "|" + filepath.Clean(dest) {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}
