// Package quota counts per-identity requests in fixed daily windows.
package quota

import (
	"context"
	"time"
)

// Store increments the counter for key in the window ending at windowEnd and
// returns the count after the increment. Counters expire with their window.
type Store interface {
	Increment(ctx context.Context, key string, windowEnd time.Time) (int, error)
}
