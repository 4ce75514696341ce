package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore persists records as a single JSON snapshot keyed by
// "phase/resourceKey". The snapshot is rewritten atomically
// (write-to-temp-then-rename) after every put so an interrupted run
// never leaves a corrupt file behind.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	records map[string]Record
}

// NewFileStore opens the snapshot at path, creating an empty store if
// the file does not exist. An unreadable or corrupt snapshot is an
// error: silently resetting state would break idempotent re-runs.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("corrupt snapshot %s: %w", path, err)}
	}

	return s, nil
}

// Get returns the record for (phase, resourceKey).
func (s *FileStore) Get(_ context.Context, phase, resourceKey string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[Key(phase, resourceKey)]
	return rec, ok, nil
}

// Put upserts a record and rewrites the snapshot atomically.
func (s *FileStore) Put(_ context.Context, rec Record) error {
	if err := rec.Status.Validate(); err != nil {
		return &Error{Op: "put", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[Key(rec.Phase, rec.ResourceKey)] = rec
	return s.persistLocked()
}

// Delete removes a record and rewrites the snapshot.
func (s *FileStore) Delete(_ context.Context, phase, resourceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(phase, resourceKey)
	if _, ok := s.records[key]; !ok {
		return nil
	}
	delete(s.records, key)
	return s.persistLocked()
}

// Snapshot returns all records ordered by phase then resource key.
func (s *FileStore) Snapshot(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Phase != recs[j].Phase {
			return recs[i].Phase < recs[j].Phase
		}
		return recs[i].ResourceKey < recs[j].ResourceKey
	})
	return recs, nil
}

// Close is a no-op for the file store; every put is already durable.
func (s *FileStore) Close() error {
	return nil
}

// persistLocked writes the snapshot to a temp file in the same
// directory and renames it into place. Caller must hold mu.
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return &Error{Op: "persist", Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Op: "persist", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return &Error{Op: "persist", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &Error{Op: "persist", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &Error{Op: "persist", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: "persist", Err: err}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: "persist", Err: err}
	}
	return nil
}
