package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CountsPerKeyAndWindow(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	day1 := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	store.now = func() time.Time { return day1.Add(-time.Hour) }

	for i := 1; i <= 3; i++ {
		n, err := store.Increment(ctx, "ip:1.2.3.4", day1)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := store.Increment(ctx, "sub:acme", day1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	store.now = func() time.Time { return day1.Add(time.Hour) }
	n, err = store.Increment(ctx, "ip:1.2.3.4", day2)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "new window starts from zero")
	assert.Len(t, store.counts, 1, "closed windows are pruned")
}

func TestInMemoryStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	end := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Increment(ctx, "k", end)
		}()
	}
	wg.Wait()

	n, err := store.Increment(ctx, "k", end)
	require.NoError(t, err)
	assert.Equal(t, 51, n)
}
