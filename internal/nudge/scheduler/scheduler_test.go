package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/internal/audit"
	auditstore "beacon/internal/audit/store"
	"beacon/internal/node/models"
	nodestore "beacon/internal/node/store"
	"beacon/internal/nudge"
	nudgestore "beacon/internal/nudge/store"
	"beacon/pkg/domain"
	"beacon/pkg/requestcontext"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []nudge.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg nudge.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.Subject
	}
	return out
}

// =============================================================================
// Scheduler Test Suite
// =============================================================================
// Every test starts with @alice's last heartbeat at lastSeen, so her offline
// period begins at lastSeen + 30m.

type SchedulerSuite struct {
	suite.Suite
	nodes     *nodestore.InMemoryStore
	records   *nudgestore.InMemoryStore
	audit     *auditstore.InMemoryStore
	sender    *recordingSender
	scheduler *Scheduler
	lastSeen  time.Time
	since     time.Time
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.nodes = nodestore.NewInMemoryStore()
	s.records = nudgestore.NewInMemoryStore()
	s.audit = auditstore.NewInMemoryStore()
	s.sender = &recordingSender{}

	sched, err := New(s.nodes, s.records, s.audit, s.sender,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.scheduler = sched

	s.lastSeen = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.since = s.lastSeen.Add(30 * time.Minute)
	s.addNode("alice", "Alice Smith <alice.smith@example.com>", s.lastSeen, "go", "rust")
}

func (s *SchedulerSuite) addNode(handle, contact string, lastSeen time.Time, tags ...string) {
	err := s.nodes.Create(context.Background(), &models.Node{
		Handle:          domain.Handle(handle),
		Endpoint:        "https://" + handle + ".example.com",
		Tags:            domain.Tags(tags),
		RegisteredAt:    lastSeen.Add(-24 * time.Hour),
		LastHeartbeatAt: lastSeen,
		Tier:            domain.TierExplorer,
		ContactEmail:    contact,
		Revision:        1,
	})
	s.Require().NoError(err)
}

// sweepAt runs one sweep at since + afterOffline.
func (s *SchedulerSuite) sweepAt(afterOffline time.Duration) Report {
	ctx := requestcontext.WithTime(context.Background(), s.since.Add(afterOffline))
	report, err := s.scheduler.Sweep(ctx)
	s.Require().NoError(err)
	return report
}

func (s *SchedulerSuite) kinds() []nudge.Kind {
	recs, err := s.records.List(context.Background(), "alice")
	s.Require().NoError(err)
	out := make([]nudge.Kind, len(recs))
	for i, r := range recs {
		out[i] = r.Kind
	}
	return out
}

// =============================================================================
// Cadence
// =============================================================================

func (s *SchedulerSuite) TestNothingBeforeFirstBoundary() {
	report := s.sweepAt(24*time.Hour - time.Second)
	s.Equal(Report{}, report)
	s.Empty(s.sender.sent)
}

func (s *SchedulerSuite) TestSendsEachBoundaryOnce() {
	s.Run("24h boundary is inclusive", func() {
		report := s.sweepAt(24 * time.Hour)
		s.Equal(Report{Sent: 1}, report)
		s.Equal([]string{"Your beacon node @alice has been offline for 24 hours"}, s.sender.subjects())
	})

	s.Run("later sweeps in the same window send nothing", func() {
		s.Equal(Report{}, s.sweepAt(25*time.Hour))
		s.Equal(Report{}, s.sweepAt(6*24*time.Hour))
		s.Len(s.sender.sent, 1)
	})

	s.Run("7d then 30d", func() {
		s.Equal(Report{Sent: 1}, s.sweepAt(7*24*time.Hour))
		s.Equal(Report{Sent: 1}, s.sweepAt(30*24*time.Hour))
		s.Len(s.sender.sent, 3)
	})

	s.Run("nothing after 30d", func() {
		s.Equal(Report{}, s.sweepAt(90*24*time.Hour))
		s.Len(s.sender.sent, 3)
		s.Equal([]nudge.Kind{nudge.KindOffline24h, nudge.KindOffline7d, nudge.KindOffline30d}, s.kinds())
	})
}

func (s *SchedulerSuite) TestMissedBoundariesAreSkipped() {
	report := s.sweepAt(8 * 24 * time.Hour)

	s.Equal(Report{Sent: 1, Skipped: 1}, report)
	s.Equal([]string{"Your beacon node @alice has been offline for 7 days"}, s.sender.subjects())

	recs, err := s.records.List(context.Background(), "alice")
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(nudge.KindOffline24h, recs[0].Kind)
	s.True(recs[0].Skipped)
	s.Equal(nudge.KindOffline7d, recs[1].Kind)
	s.False(recs[1].Skipped)
	s.True(recs[1].OfflineSince.Equal(s.since))

	s.Equal(Report{}, s.sweepAt(9*24*time.Hour), "skipped boundaries never fire late")
}

func (s *SchedulerSuite) TestHeartbeatResetsPeriod() {
	s.sweepAt(24 * time.Hour)
	s.Require().Len(s.sender.sent, 1)

	back := s.since.Add(48 * time.Hour)
	_, err := s.nodes.Update(context.Background(), "alice", func(n *models.Node) error {
		n.LastHeartbeatAt = back
		return nil
	})
	s.Require().NoError(err)

	newSince := back.Add(30 * time.Minute)
	ctx := requestcontext.WithTime(context.Background(), newSince.Add(23*time.Hour))
	report, err := s.scheduler.Sweep(ctx)
	s.Require().NoError(err)
	s.Equal(Report{}, report)

	ctx = requestcontext.WithTime(context.Background(), newSince.Add(24*time.Hour))
	report, err = s.scheduler.Sweep(ctx)
	s.Require().NoError(err)
	s.Equal(Report{Sent: 1}, report)
	s.Len(s.sender.sent, 2)
}

// =============================================================================
// Failures and exclusions
// =============================================================================

func (s *SchedulerSuite) TestSendFailureIsRetried() {
	s.sender.err = errors.New("relay down")
	report := s.sweepAt(24 * time.Hour)
	s.Equal(Report{Failed: 1}, report)
	s.Empty(s.kinds())

	s.sender.err = nil
	report = s.sweepAt(25 * time.Hour)
	s.Equal(Report{Sent: 1}, report)
	s.Equal([]nudge.Kind{nudge.KindOffline24h}, s.kinds())
}

func (s *SchedulerSuite) TestNodesWithoutEmailOrOnlineAreIgnored() {
	s.addNode("bob", "", s.lastSeen, "go")
	s.addNode("carol", "carol@example.com", s.since.Add(24*time.Hour), "go")

	report := s.sweepAt(24 * time.Hour)
	s.Equal(Report{Sent: 1}, report)
	s.Require().Len(s.sender.sent, 1)
	s.Equal("Alice Smith <alice.smith@example.com>", s.sender.sent[0].To)
}

// =============================================================================
// Message
// =============================================================================

func (s *SchedulerSuite) TestMessageCountsMatchingSearchesSinceOffline() {
	ctx := context.Background()
	entries := []audit.Entry{
		{Tags: domain.Tags{"go"}, CreatedAt: s.since.Add(-time.Minute)},
		{Tags: domain.Tags{"go"}, CreatedAt: s.since},
		{Tags: domain.Tags{"python", "rust"}, CreatedAt: s.since.Add(time.Hour)},
		{Tags: domain.Tags{"python"}, CreatedAt: s.since.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		s.Require().NoError(s.audit.Append(ctx, e))
	}

	s.sweepAt(24 * time.Hour)

	s.Require().Len(s.sender.sent, 1)
	body := s.sender.sent[0].Body
	s.Contains(body, "Hi Alice,")
	s.Contains(body, "2 searches matched your tags")
	s.Contains(body, "Tags: go, rust")

	recs, err := s.records.List(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(2, recs[0].SearchCount)
}

func (s *SchedulerSuite) TestNew_RequiresDependencies() {
	_, err := New(nil, s.records, s.audit, s.sender)
	s.Error(err)
	_, err = New(s.nodes, nil, s.audit, s.sender)
	s.Error(err)
	_, err = New(s.nodes, s.records, nil, s.sender)
	s.Error(err)
	_, err = New(s.nodes, s.records, s.audit, nil)
	s.Error(err)
}

func (s *SchedulerSuite) TestRunStopsOnCancel() {
	sched, err := New(s.nodes, s.records, s.audit, s.sender,
		WithInterval(time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("Run did not stop")
	}
}
