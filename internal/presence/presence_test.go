package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    State
	}{
		{-time.Minute, Online},
		{0, Online},
		{5 * time.Minute, Online},
		{5*time.Minute + time.Nanosecond, Away},
		{30 * time.Minute, Away},
		{30*time.Minute + time.Nanosecond, Offline},
		{7 * 24 * time.Hour, Offline},
		{7*24*time.Hour + time.Nanosecond, Ghost},
		{365 * 24 * time.Hour, Ghost},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.elapsed))
		})
	}
}

func TestState_Ordering(t *testing.T) {
	assert.Less(t, Online.Rank(), Away.Rank())
	assert.Less(t, Away.Rank(), Offline.Rank())
	assert.Less(t, Offline.Rank(), Ghost.Rank())
	assert.False(t, Ghost.Searchable())
	assert.True(t, Offline.Searchable())
}

func TestOfflineSince(t *testing.T) {
	hb := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, hb.Add(30*time.Minute), OfflineSince(hb))
	assert.Equal(t, Offline, At(hb, OfflineSince(hb).Add(time.Second)))
}

// TestClassify_Monotonic: presence never improves as a heartbeat ages.
func TestClassify_Monotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := time.Duration(rapid.Int64Range(-int64(time.Hour), int64(30*24*time.Hour)).Draw(rt, "a"))
		b := time.Duration(rapid.Int64Range(-int64(time.Hour), int64(30*24*time.Hour)).Draw(rt, "b"))
		if a > b {
			a, b = b, a
		}
		if Classify(a).Rank() > Classify(b).Rank() {
			rt.Fatalf("classify(%v)=%v worse than classify(%v)=%v", a, Classify(a), b, Classify(b))
		}
	})
}
