package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const quotaKeyPrefix = "beacon:quota:"

// RedisStore shares counters across registry instances. Each window is one
// key that expires when the window closes.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, windowEnd time.Time) (int, error) {
	redisKey := fmt.Sprintf("%s%s:%d", quotaKeyPrefix, key, windowEnd.Unix())

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireAt(ctx, redisKey, windowEnd)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment quota counter: %w", err)
	}
	return int(incr.Val()), nil
}
