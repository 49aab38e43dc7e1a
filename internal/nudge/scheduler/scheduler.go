// Package scheduler sends offline reminders on a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"beacon/internal/node/models"
	"beacon/internal/nudge"
	"beacon/internal/nudge/metrics"
	"beacon/pkg/domain"
	"beacon/pkg/email"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

const DefaultInterval = time.Hour

// NodeLister returns a point-in-time snapshot of all nodes.
type NodeLister interface {
	List(ctx context.Context) ([]*models.Node, error)
}

// RecordStore persists which reminders were handled per offline period.
type RecordStore interface {
	Recorded(ctx context.Context, handle domain.Handle, offlineSince time.Time) (map[nudge.Kind]bool, error)
	Save(ctx context.Context, rec nudge.Record) error
}

// SearchCounter counts audited searches that touched any of tags since a time.
type SearchCounter interface {
	CountMatching(ctx context.Context, since time.Time, tags domain.Tags) (int, error)
}

type Sender interface {
	Send(ctx context.Context, msg nudge.Message) error
}

// Report summarizes one sweep.
type Report struct {
	Sent    int
	Skipped int
	Failed  int
}

// Scheduler walks all nodes and sends the latest due reminder for each
// offline node with a contact email.
type Scheduler struct {
	nodes    NodeLister
	records  RecordStore
	searches SearchCounter
	sender   Sender
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
}

type Option func(*Scheduler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func New(nodes NodeLister, records RecordStore, searches SearchCounter, sender Sender, opts ...Option) (*Scheduler, error) {
	if nodes == nil {
		return nil, fmt.Errorf("node lister is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if searches == nil {
		return nil, fmt.Errorf("search counter is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	s := &Scheduler{
		nodes:    nodes,
		records:  records,
		searches: searches,
		sender:   sender,
		logger:   slog.Default(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Sweep handles every node once. Per-node failures are logged and counted;
// only a failure to list nodes fails the sweep.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	nodes, err := s.nodes.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list nodes: %w", err)
	}

	var report Report
	for _, n := range nodes {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if n.ContactEmail == "" {
			continue
		}
		if err := s.handle(ctx, n, now, &report); err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "nudge failed",
				"handle", n.Handle,
				"error", err,
			)
		}
	}

	s.metrics.ObserveSweep(time.Since(start).Seconds())
	if report != (Report{}) {
		s.logger.InfoContext(ctx, "nudge sweep completed",
			"nodes", len(nodes),
			"sent", report.Sent,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return report, nil
}

func (s *Scheduler) handle(ctx context.Context, n *models.Node, now time.Time, report *Report) error {
	since := nudge.OfflineSince(n.LastHeartbeatAt)
	reached := nudge.Reached(since, now)
	if len(reached) == 0 {
		return nil
	}

	done, err := s.records.Recorded(ctx, n.Handle, since)
	if err != nil {
		return fmt.Errorf("load nudge records: %w", err)
	}

	latest := reached[len(reached)-1]
	for _, c := range reached[:len(reached)-1] {
		if done[c.Kind] {
			continue
		}
		err := s.save(ctx, nudge.Record{
			Handle:       n.Handle,
			Kind:         c.Kind,
			OfflineSince: since,
			SentAt:       now,
			Skipped:      true,
		})
		if err != nil {
			return err
		}
		report.Skipped++
		s.metrics.IncrementNudge(string(c.Kind), "skipped")
	}
	if done[latest.Kind] {
		return nil
	}

	count, err := s.searches.CountMatching(ctx, since, n.Tags)
	if err != nil {
		return fmt.Errorf("count searches: %w", err)
	}
	if err := s.sender.Send(ctx, Compose(n, latest.Kind, count)); err != nil {
		s.metrics.IncrementNudge(string(latest.Kind), "failed")
		return fmt.Errorf("send %s: %w", latest.Kind, err)
	}
	err = s.save(ctx, nudge.Record{
		Handle:       n.Handle,
		Kind:         latest.Kind,
		OfflineSince: since,
		SentAt:       now,
		SearchCount:  count,
	})
	if err != nil {
		return err
	}
	report.Sent++
	s.metrics.IncrementNudge(string(latest.Kind), "sent")
	s.logger.InfoContext(ctx, "nudge sent",
		"handle", n.Handle,
		"kind", latest.Kind,
		"offline_since", since,
		"search_count", count,
	)
	return nil
}

// save treats a concurrent duplicate as success.
func (s *Scheduler) save(ctx context.Context, rec nudge.Record) error {
	if err := s.records.Save(ctx, rec); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return fmt.Errorf("save %s record: %w", rec.Kind, err)
	}
	return nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "nudge scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "nudge scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "nudge sweep failed", "error", err)
			}
		}
	}
}

var offlineFor = map[nudge.Kind]string{
	nudge.KindOffline24h: "24 hours",
	nudge.KindOffline7d:  "7 days",
	nudge.KindOffline30d: "30 days",
}

// Compose builds the reminder for n. searchCount is the number of searches
// for any of the node's tags since it went offline.
func Compose(n *models.Node, kind nudge.Kind, searchCount int) nudge.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", email.FirstName(n.ContactEmail))
	fmt.Fprintf(&b, "Your beacon node %s has not sent a heartbeat for %s.\n", n.Handle.Display(), offlineFor[kind])
	switch searchCount {
	case 0:
		b.WriteString("No searches have matched your tags since it went offline.\n")
	case 1:
		b.WriteString("1 search matched your tags while it was offline.\n")
	default:
		fmt.Fprintf(&b, "%d searches matched your tags while it was offline.\n", searchCount)
	}
	if len(n.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(n.Tags, ", "))
	}
	b.WriteString("\nStart your node again and it will be listed as soon as its next heartbeat arrives.\n")

	return nudge.Message{
		To:      n.ContactEmail,
		Subject: fmt.Sprintf("Your beacon node %s has been offline for %s", n.Handle.Display(), offlineFor[kind]),
		Body:    b.String(),
	}
}
