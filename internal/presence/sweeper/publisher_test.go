package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/presence"
)

type fakeProducer struct {
	key   string
	value any
}

func (f *fakeProducer) PublishJSON(_ context.Context, key string, v any) error {
	f.key = key
	f.value = v
	return nil
}

func TestStreamPublisher_KeysByHandle(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewStreamPublisher(prod)

	tr := Transition{Handle: "alice", From: presence.Online, To: presence.Away, ObservedAt: time.Now()}
	require.NoError(t, pub.PublishTransition(context.Background(), tr))

	assert.Equal(t, "alice", prod.key)
	assert.Equal(t, tr, prod.value)
}
