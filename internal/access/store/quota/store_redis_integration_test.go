//go:build integration

package quota

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestIncrementSetsExpiry() {
	ctx := context.Background()
	end := time.Now().Add(time.Hour).Truncate(time.Second)

	for i := 1; i <= 3; i++ {
		n, err := s.store.Increment(ctx, "ip:1.2.3.4", end)
		s.Require().NoError(err)
		s.Equal(i, n)
	}

	ttl, err := s.redis.Client.TTL(ctx, fmt.Sprintf("%sip:1.2.3.4:%d", quotaKeyPrefix, end.Unix())).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)
	s.LessOrEqual(ttl, time.Hour)
}

func (s *RedisStoreSuite) TestWindowsAreIndependent() {
	ctx := context.Background()
	end := time.Now().Add(time.Hour)

	_, err := s.store.Increment(ctx, "k", end)
	s.Require().NoError(err)
	n, err := s.store.Increment(ctx, "k", end.Add(24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n)
}
