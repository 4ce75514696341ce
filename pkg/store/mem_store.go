package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store used by tests and dry runs.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// Get returns the record for (phase, resourceKey).
func (s *MemStore) Get(_ context.Context, phase, resourceKey string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[Key(phase, resourceKey)]
	return rec, ok, nil
}

// Put upserts a record.
func (s *MemStore) Put(_ context.Context, rec Record) error {
	if err := rec.Status.Validate(); err != nil {
		return &Error{Op: "put", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[Key(rec.Phase, rec.ResourceKey)] = rec
	return nil
}

// Delete removes a record, if present.
func (s *MemStore) Delete(_ context.Context, phase, resourceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, Key(phase, resourceKey))
	return nil
}

// Snapshot returns all records ordered by phase then resource key.
func (s *MemStore) Snapshot(_ context.Context) ([]Record, error) {
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

// Close is a no-op.
func (s *MemStore) Close() error {
	return nil
}
