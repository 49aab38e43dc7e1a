package store

import (
	"context"
	"sync"
	"time"

	"beacon/internal/nudge"
	"beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

type recordKey struct {
	handle domain.Handle
	kind   nudge.Kind
	since  int64
}

// InMemoryStore keeps records in a map. Offline periods compare at
// microsecond precision to match the postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]nudge.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]nudge.Record)}
}

func keyFor(handle domain.Handle, kind nudge.Kind, since time.Time) recordKey {
	return recordKey{handle: handle, kind: kind, since: since.UnixMicro()}
}

func (s *InMemoryStore) Recorded(_ context.Context, handle domain.Handle, offlineSince time.Time) (map[nudge.Kind]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[nudge.Kind]bool)
	for _, c := range nudge.Cadences {
		if _, ok := s.records[keyFor(handle, c.Kind, offlineSince)]; ok {
			out[c.Kind] = true
		}
	}
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, rec nudge.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(rec.Handle, rec.Kind, rec.OfflineSince)
	if _, exists := s.records[key]; exists {
		return sentinel.ErrConflict
	}
	s.records[key] = rec
	return nil
}

// List returns every record for handle, oldest period first.
func (s *InMemoryStore) List(_ context.Context, handle domain.Handle) ([]nudge.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []nudge.Record
	for k, rec := range s.records {
		if k.handle == handle {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}
