package history

import (
	"context"
	"sync"
)

// MemStore is a bounded in-memory [Store]. Once full, each append drops the
// oldest record.
type MemStore struct {
	mu      sync.RWMutex
	max     int
	records []Record // oldest first
	byID    map[string]int
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns a store keeping at most maxEntries records. A
// non-positive maxEntries keeps 1000.
func NewMemStore(maxEntries int) *MemStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemStore{max: maxEntries, byID: make(map[string]int)}
}

// Append implements [Store].
func (s *MemStore) Append(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec = stamp(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if over := len(s.records) - s.max; over > 0 {
		s.records = append(s.records[:0:0], s.records[over:]...)
		s.reindex()
	} else {
		s.byID[rec.ID] = len(s.records) - 1
	}
	return rec, nil
}

// Recent implements [Store].
func (s *MemStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.records))
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Get implements [Store].
func (s *MemStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.records[i], nil
}

// Len returns the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// reindex rebuilds byID. Callers hold mu.
func (s *MemStore) reindex() {
	clear(s.byID)
	for i, r := range s.records {
		s.byID[r.ID] = i
	}
}
