package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/audit"
	"beacon/pkg/domain"
)

func TestInMemoryStore_CountMatching(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	entries := []audit.Entry{
		{Caller: "a", Tags: domain.Tags{"go"}, CreatedAt: t0.Add(-time.Hour)},
		{Caller: "b", Tags: domain.Tags{"go", "rust"}, CreatedAt: t0},
		{Caller: "c", Tags: domain.Tags{"python"}, CreatedAt: t0.Add(time.Hour)},
		{Caller: "d", Tags: domain.Tags{"rust"}, CreatedAt: t0.Add(2 * time.Hour)},
		{Caller: "e", CreatedAt: t0.Add(3 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	n, err := store.CountMatching(ctx, t0, domain.Tags{"go", "rust"})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "since is inclusive and earlier entries are ignored")

	n, err = store.CountMatching(ctx, t0, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "e", recent[0].Caller)
	assert.Equal(t, "d", recent[1].Caller)
}
