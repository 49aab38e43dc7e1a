package nudge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReached(t *testing.T) {
	since := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	kinds := func(cs []Cadence) []Kind {
		var out []Kind
		for _, c := range cs {
			out = append(out, c.Kind)
		}
		return out
	}

	tests := []struct {
		name  string
		after time.Duration
		want  []Kind
	}{
		{"before offline", -time.Hour, nil},
		{"just before 24h", 24*time.Hour - time.Nanosecond, nil},
		{"at 24h", 24 * time.Hour, []Kind{KindOffline24h}},
		{"at 7d", 7 * 24 * time.Hour, []Kind{KindOffline24h, KindOffline7d}},
		{"past 30d", 100 * 24 * time.Hour, []Kind{KindOffline24h, KindOffline7d, KindOffline30d}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kinds(Reached(since, since.Add(tt.after))))
		})
	}
}

func TestOfflineSince(t *testing.T) {
	last := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, last.Add(30*time.Minute), OfflineSince(last))
}
