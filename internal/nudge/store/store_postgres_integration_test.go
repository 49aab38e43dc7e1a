//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/internal/nudge"
	"beacon/internal/platform/postgres"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
	since    time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(s.postgres.DB))
	s.store = NewPostgres(s.postgres.DB)
	s.since = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "nudges"))
}

func (s *PostgresStoreSuite) TestSaveIsUniquePerPeriod() {
	ctx := context.Background()
	rec := nudge.Record{Handle: "alice", Kind: nudge.KindOffline24h, OfflineSince: s.since, SentAt: s.since.Add(24 * time.Hour), SearchCount: 4}

	s.Require().NoError(s.store.Save(ctx, rec))
	s.ErrorIs(s.store.Save(ctx, rec), sentinel.ErrConflict)

	rec.OfflineSince = s.since.Add(72 * time.Hour)
	s.NoError(s.store.Save(ctx, rec))
}

func (s *PostgresStoreSuite) TestRecordedAndList() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, nudge.Record{Handle: "alice", Kind: nudge.KindOffline7d, OfflineSince: s.since, SentAt: s.since.Add(8 * 24 * time.Hour)}))
	s.Require().NoError(s.store.Save(ctx, nudge.Record{Handle: "alice", Kind: nudge.KindOffline24h, OfflineSince: s.since, SentAt: s.since.Add(8 * 24 * time.Hour), Skipped: true}))

	got, err := s.store.Recorded(ctx, "alice", s.since)
	s.Require().NoError(err)
	s.Equal(map[nudge.Kind]bool{nudge.KindOffline24h: true, nudge.KindOffline7d: true}, got)

	got, err = s.store.Recorded(ctx, "alice", s.since.Add(time.Hour))
	s.Require().NoError(err)
	s.Empty(got)

	recs, err := s.store.List(ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(nudge.KindOffline24h, recs[0].Kind)
	s.True(recs[0].Skipped)
	s.Equal(nudge.KindOffline7d, recs[1].Kind)
}
