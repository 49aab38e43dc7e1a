// Package store persists audit entries.
package store

import (
	"context"
	"sync"
	"time"

	"beacon/internal/audit"
	"beacon/pkg/domain"
)

// InMemoryStore keeps entries in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// CountMatching counts entries at or after since whose tags share at least one
// tag with tags.
func (s *InMemoryStore) CountMatching(_ context.Context, since time.Time, tags domain.Tags) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		if len(e.Tags.Intersect(tags)) > 0 {
			count++
		}
	}
	return count, nil
}

// ListRecent returns up to limit entries, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(limit, len(s.entries))
	out := make([]audit.Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}
