package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one recorded outcome and the state the breaker must be in after it.
type step struct {
	fail     bool
	wantOpen bool
}

func replay(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, st := range steps {
		if st.fail {
			b.RecordFailure()
		} else {
			b.RecordSuccess()
		}
		require.Equal(t, st.wantOpen, b.IsOpen(), "after step %d", i+1)
	}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name:  "opens on the threshold-th consecutive failure",
			opts:  []Option{WithFailureThreshold(3)},
			steps: []step{{true, false}, {true, false}, {true, true}},
		},
		{
			name: "a success in between restarts the failure count",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{true, false}, {true, false}, {false, false},
				{true, false}, {true, false}, {true, true},
			},
		},
		{
			name:  "closes after enough probe successes",
			opts:  []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{{true, true}, {false, true}, {false, false}},
		},
		{
			name: "a failed probe restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps: []step{
				{true, true}, {false, true}, {false, true},
				{true, true}, {false, true}, {false, true}, {false, false},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replay(t, New("vector", tt.opts...), tt.steps)
		})
	}
}

func TestBreakerReportsStateChanges(t *testing.T) {
	b := New("vector", WithFailureThreshold(1))
	assert.Equal(t, "vector", b.Name())
	assert.Equal(t, StateClosed, b.State())

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "already open")

	primary, change := b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, "closed", b.State().String())
}

func TestBreakerResetCloses(t *testing.T) {
	b := New("vector", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerAllowsOneProbePerCooldown(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	b := New("vector", WithFailureThreshold(2), WithCooldown(10*time.Second), WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.False(t, b.Allow(), "inside cooldown")

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow(), "probe after cooldown")
	assert.False(t, b.Allow(), "only one probe per cooldown")

	b.RecordSuccess()
	assert.True(t, b.Allow())
}
