// Package file implements domain.StateStore on top of a single JSON file.
// It is the default backend and needs no external services.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eguzmanz/dexdash/internal/domain"
)

const stateFileName = "state.json"

// StateStore persists the full portfolio state as one JSON document. Writes
// are atomic (temp file, fsync, rename) so a crash mid-save leaves either
// the old state or the new one on disk, never a torn mix of the two.
type StateStore struct {
	path string
}

// NewStateStore creates a StateStore rooted at dataDir, creating the
// directory if necessary.
func NewStateStore(dataDir string) (*StateStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create data dir: %w", err)
	}
	return &StateStore{path: filepath.Join(dataDir, stateFileName)}, nil
}

// Load reads the persisted state. It returns domain.ErrNotFound when no
// state file exists yet.
func (s *StateStore) Load(_ context.Context) (domain.PortfolioState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.PortfolioState{}, domain.ErrNotFound
		}
		return domain.PortfolioState{}, fmt.Errorf("file: read state: %w", err)
	}

	var state domain.PortfolioState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.PortfolioState{}, fmt.Errorf("file: parse state: %w", err)
	}
	return state, nil
}

// Save writes the full state to disk atomically.
func (s *StateStore) Save(_ context.Context, state domain.PortfolioState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("file: marshal state: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("file: write state: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to path via temp file + fsync + rename, then
// fsyncs the parent directory to harden the rename durability.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Compile-time interface check.
var _ domain.StateStore = (*StateStore)(nil)
