package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}

func TestClientAgentFallsBackToUserAgent(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "203.0.113.7", "curl/8.4.0")
	assert.Equal(t, "curl/8.4.0", ClientAgent(ctx))
	assert.Equal(t, "203.0.113.7", ClientIP(ctx))

	ctx = WithClientAgent(ctx, "Firefox 120.0 (Linux)")
	assert.Equal(t, "Firefox 120.0 (Linux)", ClientAgent(ctx))
}
