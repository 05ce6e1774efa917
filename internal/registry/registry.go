// Package registry persists the records of processes the supervisor
// launched. Start and stop are separate invocations, so the registry is
// a small JSON state file rather than in-memory state; stop reads it to
// target exactly the PIDs this supervisor spawned, with command-line
// signature scanning demoted to an orphan-recovery fallback.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/phrazzld/warden/internal/domain"
)

// File is a registry backed by one JSON file. Writes go through a temp
// file and rename, so a crashed supervisor never leaves a torn file.
type File struct {
	path string
	mu   sync.Mutex
}

// New returns a registry stored at path. The file is created on first
// append.
func New(path string) *File {
	return &File{path: path}
}

// Load returns all recorded processes. A missing file is an empty
// registry, not an error.
func (f *File) Load() ([]domain.ProcessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Append adds a record for a freshly launched process.
func (f *File) Append(rec domain.ProcessRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, err := f.load()
	if err != nil {
		return err
	}
	return f.save(append(recs, rec))
}

// Replace overwrites the registry with exactly recs.
func (f *File) Replace(recs []domain.ProcessRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(recs)
}

// Prune drops records rejected by keep and persists the survivors,
// returning them. Used to discard records for processes that have
// exited or whose PID was reused.
func (f *File) Prune(keep func(domain.ProcessRecord) bool) ([]domain.ProcessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, err := f.load()
	if err != nil {
		return nil, err
	}

	kept := recs[:0]
	for _, rec := range recs {
		if keep(rec) {
			kept = append(kept, rec)
		}
	}
	if err := f.save(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (f *File) load() ([]domain.ProcessRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", f.path, err)
	}

	var recs []domain.ProcessRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", f.path, err)
	}
	return recs, nil
}

func (f *File) save(recs []domain.ProcessRecord) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
