package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backed by an append-only slice.
// It serves tests and single-process deployments that do not need
// Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	maxID   int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of the entry.
func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Details.Extra = copyExtra(entry.Details.Extra)
	s.entries = append(s.entries, entry)
	if entry.ID > s.maxID {
		s.maxID = entry.ID
	}
	return nil
}

// Select returns matching entries in insertion order.
func (s *MemoryStore) Select(ctx context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if filter.Matches(e) {
			e.Details.Extra = copyExtra(e.Details.Extra)
			out = append(out, e)
		}
	}
	return out, nil
}

// MaxID returns the highest id appended so far.
func (s *MemoryStore) MaxID(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxID, nil
}

// DeleteOlderThan drops entries of the tier stamped at or before
// cutoff.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, tier RiskTier, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.RiskTier == tier && !e.Timestamp.After(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

// Len reports how many entries the store holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func copyExtra(extra map[string]string) map[string]string {
	if extra == nil {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}
