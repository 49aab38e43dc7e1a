package quota

import (
	"context"
	"sync"
	"time"
)

type windowKey struct {
	key string
	end int64
}

// InMemoryStore keeps counters in process. Suitable for a single registry
// instance; use RedisStore when several instances share quotas.
type InMemoryStore struct {
	mu      sync.Mutex
	counts  map[windowKey]int
	lastEnd int64
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		counts: make(map[windowKey]int),
		now:    time.Now,
	}
}

func (s *InMemoryStore) Increment(_ context.Context, key string, windowEnd time.Time) (int, error) {
	end := windowEnd.Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	if end > s.lastEnd {
		s.pruneLocked(s.now().Unix())
		s.lastEnd = end
	}
	k := windowKey{key: key, end: end}
	s.counts[k]++
	return s.counts[k], nil
}

// pruneLocked drops windows that have already closed.
func (s *InMemoryStore) pruneLocked(now int64) {
	for k := range s.counts {
		if k.end <= now {
			delete(s.counts, k)
		}
	}
}
