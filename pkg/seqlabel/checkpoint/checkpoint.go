// Package checkpoint persists the batch driver's resume point.
//
// The state file is small JSON, replaced atomically on every save: the new
// content is written to a temp file in the same directory, fsynced, then
// renamed over the old file. A crash mid-save therefore leaves either the
// old state or the new one, never a truncated file.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// State marks the last fully processed slice of the corpus.
type State struct {
	// NextIndex is the index of the first unprocessed record.
	NextIndex int `json:"next_index"`
	// Processed counts records handled so far, including terminal failures.
	Processed int `json:"processed"`
	// OutputBytes is the flushed length of the output log at save time. On
	// resume the log is truncated to this offset, discarding any torn tail.
	OutputBytes int64 `json:"output_bytes"`
}

// Store loads and saves checkpoint state at a fixed path. Injected into the
// driver so tests can point it anywhere.
type Store struct {
	path string
}

// NewStore returns a store persisting at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path this store persists to.
func (s *Store) Path() string { return s.path }

// Load reads the persisted state. A missing file is not an error: it returns
// the zero state, meaning a fresh run.
func (s *Store) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load checkpoint: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("load checkpoint: %w", err)
	}
	return st, nil
}

// Save atomically replaces the persisted state. Safe to call repeatedly;
// every call fully overwrites the previous state.
func (s *Store) Save(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	syncDir(dir)
	return nil
}

// Remove deletes the checkpoint file. Called when a run finishes with no
// failures so the next run starts clean.
func (s *Store) Remove() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// syncDir best-effort fsyncs the directory so the rename is durable.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	f.Sync()
}
