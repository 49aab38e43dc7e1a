// Package service implements the access tier gate: who is calling, what their
// tier permits, and whether today's quota allows one more search.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"beacon/internal/access/metrics"
	"beacon/internal/access/models"
	"beacon/internal/access/policy"
	"beacon/internal/access/verifier"
	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
)

// QuotaStore counts requests per identity per window.
type QuotaStore interface {
	Increment(ctx context.Context, key string, windowEnd time.Time) (int, error)
}

// PolicySource supplies the tier table currently in force. A policy.Table is
// its own static source; policy.Live follows the policy file.
type PolicySource interface {
	Current() policy.Table
}

// Gate authorizes searches. It fails closed: any caller it cannot verify is
// treated as an explorer and quota-keyed by client IP.
type Gate struct {
	verifier verifier.Verifier
	quotas   QuotaStore
	policy   PolicySource
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithPolicy(src PolicySource) Option {
	return func(g *Gate) {
		if src != nil {
			g.policy = src
		}
	}
}

func New(v verifier.Verifier, quotas QuotaStore, opts ...Option) (*Gate, error) {
	if v == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if quotas == nil {
		return nil, fmt.Errorf("quota store is required")
	}
	g := &Gate{
		verifier: v,
		quotas:   quotas,
		policy:   policy.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Identify verifies the caller's credential. It never fails: unverifiable
// callers come back as unverified explorers, and so do valid API keys whose
// tier is not granted API access.
func (g *Gate) Identify(ctx context.Context) models.Identity {
	cred := requestcontext.CallerCredential(ctx)
	anonymous := models.Identity{
		Key:  "ip:" + requestcontext.ClientIP(ctx),
		Tier: domain.TierExplorer,
	}
	if cred.IsZero() {
		return anonymous
	}

	verified, err := g.verifier.Verify(ctx, cred)
	if err != nil || verified == nil || !verified.Tier.IsValid() {
		g.metrics.IncrementVerificationFailure(string(cred.Scheme))
		g.logger.WarnContext(ctx, "caller verification failed, falling back to explorer",
			"request_id", requestcontext.RequestID(ctx),
			"scheme", cred.Scheme,
			"client_ip", requestcontext.ClientIP(ctx),
			"error", err,
		)
		return anonymous
	}
	if cred.Scheme == requestcontext.SchemeAPIKey && !g.Limits(verified.Tier).APIAccess {
		g.metrics.IncrementAPIKeyDenial(verified.Tier.String())
		g.logger.WarnContext(ctx, "api access not permitted for tier, falling back to explorer",
			"request_id", requestcontext.RequestID(ctx),
			"subject", verified.Subject,
			"tier", verified.Tier,
		)
		return anonymous
	}
	return models.Identity{
		Key:      "sub:" + verified.Subject,
		Subject:  verified.Subject,
		Tier:     verified.Tier,
		Verified: true,
	}
}

// ResolveTier returns the tier for a credential without touching quotas.
// Node registration uses it to stamp the registering caller's tier.
func (g *Gate) ResolveTier(ctx context.Context, cred requestcontext.Credential) domain.Tier {
	return g.Identify(requestcontext.WithCredential(ctx, cred)).Tier
}

// Limits returns the policy row for a tier.
func (g *Gate) Limits(tier domain.Tier) models.TierLimits {
	return g.policy.Current().Limits(tier)
}

// Authorize identifies the caller and consumes one unit of today's quota.
//
// Errors: CodeRateLimited (with the window's reset time) when the quota is
// exhausted; CodeInternal when the quota store fails.
func (g *Gate) Authorize(ctx context.Context) (*models.Decision, error) {
	identity := g.Identify(ctx)
	limits := g.policy.Current().Limits(identity.Tier)
	_, resetAt := models.DayWindow(requestcontext.Now(ctx))

	count, err := g.quotas.Increment(ctx, identity.Key, resetAt)
	if err != nil {
		g.metrics.IncrementDecision(identity.Tier.String(), "error")
		g.logger.ErrorContext(ctx, "quota check failed",
			"request_id", requestcontext.RequestID(ctx),
			"identity", identity.Key,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check quota")
	}

	result := models.RateLimitResult{
		Allowed:   count <= limits.DailyQuota,
		Limit:     limits.DailyQuota,
		Remaining: max(limits.DailyQuota-count, 0),
		ResetAt:   resetAt,
	}
	decision := &models.Decision{Identity: identity, Limits: limits, Quota: result}

	if !result.Allowed {
		g.metrics.IncrementDecision(identity.Tier.String(), "rate_limited")
		g.logger.InfoContext(ctx, "daily quota exhausted",
			"request_id", requestcontext.RequestID(ctx),
			"identity", identity.Key,
			"tier", identity.Tier,
			"limit", limits.DailyQuota,
			"reset_at", resetAt,
		)
		return decision, dErrors.RateLimited("daily search quota exhausted", resetAt)
	}

	g.metrics.IncrementDecision(identity.Tier.String(), "allowed")
	return decision, nil
}
