package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"beacon/internal/node/metrics"
	"beacon/internal/node/models"
	"beacon/internal/presence"
	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

// Service owns node registration, heartbeats and lookups.
// Register and Heartbeat are all-or-nothing per handle.
type Service struct {
	store   Store
	index   TagIndex
	tiers   TierResolver
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTierResolver sets how registering callers are mapped to a tier.
// Without one every node registers as explorer.
func WithTierResolver(r TierResolver) Option {
	return func(s *Service) {
		s.tiers = r
	}
}

func New(store Store, index TagIndex, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("node store is required")
	}
	if index == nil {
		return nil, fmt.Errorf("tag index is required")
	}
	svc := &Service{
		store:  store,
		index:  index,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterResult is the outcome of Register.
type RegisterResult struct {
	Node    *models.Node
	Created bool
}

// Register creates a node or re-registers an existing handle. The node's tier
// is resolved from the caller's credential.
func (s *Service) Register(ctx context.Context, reg models.Registration, cred requestcontext.Credential) (*RegisterResult, error) {
	now := storedNow(ctx)
	reg.Tier = s.resolveTier(ctx, cred)

	node, created, err := s.upsert(ctx, reg)
	if err != nil {
		s.logger.ErrorContext(ctx, "node registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"handle", reg.Handle,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register node")
	}

	if err := s.index.Replace(ctx, node.Handle, node.Tags, node.Revision); err != nil {
		s.logger.ErrorContext(ctx, "tag index update failed",
			"handle", node.Handle,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to index node tags")
	}

	result := "updated"
	if created {
		result = "created"
	}
	s.metrics.IncrementRegistration(result)
	s.logger.InfoContext(ctx, "node registered",
		"request_id", requestcontext.RequestID(ctx),
		"handle", node.Handle,
		"tier", node.Tier,
		"tags", len(node.Tags),
		"created", created,
		"at", now,
	)
	return &RegisterResult{Node: node, Created: created}, nil
}

func (s *Service) upsert(ctx context.Context, reg models.Registration) (*models.Node, bool, error) {
	now := storedNow(ctx)
	update := func(n *models.Node) error {
		n.ApplyRegistration(reg, now)
		return nil
	}

	node, err := s.store.Update(ctx, reg.Handle, update)
	if err == nil {
		return node, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, err
	}

	fresh := models.NewNode(reg, now)
	err = s.store.Create(ctx, fresh)
	if err == nil {
		return fresh, true, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, false, err
	}
	// Lost a creation race for the same handle; the winner's record exists now.
	node, err = s.store.Update(ctx, reg.Handle, update)
	if err != nil {
		return nil, false, err
	}
	return node, false, nil
}

func (s *Service) resolveTier(ctx context.Context, cred requestcontext.Credential) domain.Tier {
	if s.tiers == nil {
		return domain.TierExplorer
	}
	return s.tiers.ResolveTier(ctx, cred)
}

// Heartbeat records liveness for a registered node. The heartbeat timestamp
// defaults to the request time and is clamped to it, so a fast client clock
// cannot hold a node ONLINE. Stale and repeated heartbeats are accepted but
// change nothing.
//
// Errors: CodeNotRegistered for unknown handles.
func (s *Service) Heartbeat(ctx context.Context, hb models.Heartbeat) (*models.Node, models.HeartbeatOutcome, error) {
	now := storedNow(ctx)
	hb.Timestamp = hb.Timestamp.Truncate(models.TimestampPrecision)
	if hb.Timestamp.IsZero() || hb.Timestamp.After(now) {
		hb.Timestamp = now
	}

	var outcome models.HeartbeatOutcome
	var tagsChanged bool
	node, err := s.store.Update(ctx, hb.Handle, func(n *models.Node) error {
		before := n.Tags
		outcome = n.ApplyHeartbeat(hb)
		tagsChanged = outcome == models.HeartbeatApplied && !before.Equal(n.Tags)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementHeartbeat("not_registered")
			return nil, "", dErrors.New(dErrors.CodeNotRegistered, "handle is not registered")
		}
		s.logger.ErrorContext(ctx, "heartbeat update failed",
			"request_id", requestcontext.RequestID(ctx),
			"handle", hb.Handle,
			"error", err,
		)
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record heartbeat")
	}

	if tagsChanged {
		if err := s.index.Replace(ctx, node.Handle, node.Tags, node.Revision); err != nil {
			s.logger.ErrorContext(ctx, "tag index update failed",
				"handle", node.Handle,
				"error", err,
			)
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to index node tags")
		}
	}

	s.metrics.IncrementHeartbeat(string(outcome))
	if outcome == models.HeartbeatStale {
		s.logger.DebugContext(ctx, "stale heartbeat ignored",
			"handle", hb.Handle,
			"heartbeat_at", hb.Timestamp,
			"last_heartbeat_at", node.LastHeartbeatAt,
		)
	}
	return node, outcome, nil
}

// storedNow is the request time at the precision every store keeps, so a
// replayed heartbeat compares equal to the one already persisted.
func storedNow(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).Truncate(models.TimestampPrecision)
}

// NodeView is a node with its presence as of the request time.
type NodeView struct {
	Node     *models.Node
	Presence presence.State
}

// Get resolves a handle regardless of presence; GHOST nodes stay resolvable.
//
// Errors: CodeNotFound for unknown handles.
func (s *Service) Get(ctx context.Context, handle domain.Handle) (*NodeView, error) {
	node, err := s.store.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "node not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load node")
	}
	return &NodeView{Node: node, Presence: node.Presence(requestcontext.Now(ctx))}, nil
}
