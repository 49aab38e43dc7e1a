// Package sweeper detects presence transitions by periodically reclassifying nodes.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"beacon/internal/node/models"
	"beacon/internal/presence"
	"beacon/internal/presence/metrics"
	"beacon/pkg/domain"
	"beacon/pkg/requestcontext"
)

// MaxSweepInterval is the longest allowed sweep period.
const MaxSweepInterval = presence.AwayAfter

// Transition is a presence change observed between two sweeps.
type Transition struct {
	Handle          domain.Handle  `json:"handle"`
	From            presence.State `json:"from"`
	To              presence.State `json:"to"`
	ObservedAt      time.Time      `json:"observed_at"`
	LastHeartbeatAt time.Time      `json:"last_heartbeat_at"`
}

// NodeLister returns a point-in-time snapshot of all nodes.
type NodeLister interface {
	List(ctx context.Context) ([]*models.Node, error)
}

// Publisher forwards transitions to downstream consumers.
type Publisher interface {
	PublishTransition(ctx context.Context, t Transition) error
}

// Sweeper periodically recomputes presence for every node and reports changes.
// It reads snapshots only and keeps its own last-seen table, so heartbeats are
// never blocked by a sweep.
type Sweeper struct {
	nodes     NodeLister
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	interval  time.Duration

	mu       sync.Mutex
	lastSeen map[domain.Handle]presence.State
}

type Option func(*Sweeper)

func WithPublisher(p Publisher) Option {
	return func(s *Sweeper) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithInterval sets the sweep period. Values above MaxSweepInterval are clamped.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = min(d, MaxSweepInterval)
		}
	}
}

func New(nodes NodeLister, opts ...Option) (*Sweeper, error) {
	if nodes == nil {
		return nil, fmt.Errorf("node lister is required")
	}
	s := &Sweeper{
		nodes:    nodes,
		logger:   slog.Default(),
		interval: time.Minute,
		lastSeen: make(map[domain.Handle]presence.State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Interval returns the configured sweep period.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Sweep classifies every node at the context's time and returns the transitions
// since the previous sweep. The first time a node is seen only establishes its
// baseline. Publish failures are logged and counted, never returned.
func (s *Sweeper) Sweep(ctx context.Context) ([]Transition, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	snapshot, err := s.nodes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot nodes: %w", err)
	}

	counts := map[string]int{
		presence.Online.String(): 0, presence.Away.String(): 0,
		presence.Offline.String(): 0, presence.Ghost.String(): 0,
	}
	var transitions []Transition

	s.mu.Lock()
	for _, n := range snapshot {
		state := n.Presence(now)
		counts[state.String()]++

		prev, seen := s.lastSeen[n.Handle]
		s.lastSeen[n.Handle] = state
		if !seen || prev == state {
			continue
		}
		transitions = append(transitions, Transition{
			Handle:          n.Handle,
			From:            prev,
			To:              state,
			ObservedAt:      now,
			LastHeartbeatAt: n.LastHeartbeatAt,
		})
	}
	s.mu.Unlock()

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Handle < transitions[j].Handle
	})
	for _, t := range transitions {
		s.report(ctx, t)
	}

	s.metrics.SetNodesByState(counts)
	s.metrics.ObserveSweep(time.Since(start).Seconds())
	s.logger.DebugContext(ctx, "presence sweep complete",
		"nodes", len(snapshot),
		"transitions", len(transitions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return transitions, nil
}

func (s *Sweeper) report(ctx context.Context, t Transition) {
	s.metrics.IncrementTransition(t.From.String(), t.To.String())
	s.logger.InfoContext(ctx, "presence transition",
		"handle", t.Handle,
		"from", t.From,
		"to", t.To,
		"last_heartbeat_at", t.LastHeartbeatAt,
	)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransition(ctx, t); err != nil {
		s.metrics.IncrementPublishError()
		s.logger.WarnContext(ctx, "failed to publish presence transition",
			"handle", t.Handle,
			"error", err,
		)
	}
}

// Run sweeps on every tick until ctx is cancelled. Each sweep gets its own
// timestamp so all nodes in one pass are judged against the same instant.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "presence sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "presence sweeper stopped")
			return nil
		case tick := <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(requestcontext.WithTime(ctx, tick.UTC()), s.interval)
			if _, err := s.Sweep(sweepCtx); err != nil {
				s.logger.ErrorContext(ctx, "presence sweep failed", "error", err)
			}
			cancel()
		}
	}
}
