package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/pkg/domain"
	"beacon/pkg/requestcontext"
)

type sliceStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (s *sliceStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *sliceStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestPublisher_StampsEntries(t *testing.T) {
	store := &sliceStore{}
	pub, err := NewPublisher(store)
	require.NoError(t, err)

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientAgent(ctx, "curl/8.4.0")

	require.NoError(t, pub.Record(ctx, Entry{Caller: "ip:1.2.3.4", Tier: domain.TierExplorer, Tags: domain.Tags{"go"}}))

	require.Len(t, store.entries, 1)
	got := store.entries[0]
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "curl/8.4.0", got.ClientAgent)
}

func TestPublisher_PropagatesStoreErrors(t *testing.T) {
	store := &sliceStore{err: errors.New("disk full")}
	pub, err := NewPublisher(store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	err = pub.Record(context.Background(), Entry{Caller: "x"})
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 0, store.len())
}

func TestPublisher_ConcurrentRecords(t *testing.T) {
	store := &sliceStore{}
	pub, err := NewPublisher(store)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, pub.Record(context.Background(), Entry{Caller: "a"}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, store.len())
}

func TestNewPublisher_RequiresStore(t *testing.T) {
	_, err := NewPublisher(nil)
	assert.Error(t, err)
}
