// Package service implements the query router: authorize, look up tags and
// vectors concurrently, re-check against node records, rank, enrich, audit.
package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"beacon/internal/audit"
	"beacon/internal/discovery/metrics"
	"beacon/internal/discovery/models"
	nodemodels "beacon/internal/node/models"
	"beacon/internal/platform/tracing"
	"beacon/internal/presence"
	"beacon/internal/vector"
	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
)

const (
	DefaultEnrichCallTimeout = 2 * time.Second
	DefaultEnrichDeadline    = 5 * time.Second
)

var tracer = tracing.Tracer("beacon/discovery")

// Router answers discovery queries.
type Router struct {
	authorizer Authorizer
	tags       TagIndex
	vectors    VectorSearcher
	nodes      NodeReader
	enricher   Enricher
	audit      AuditRecorder

	enrichCallTimeout time.Duration
	enrichDeadline    time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Router)

// WithVectorSearcher enables semantic matching. Without it every text query
// is answered tag-only and flagged degraded.
func WithVectorSearcher(v VectorSearcher) Option {
	return func(r *Router) {
		r.vectors = v
	}
}

// WithEnricher enables live previews for fan-out tiers.
func WithEnricher(e Enricher) Option {
	return func(r *Router) {
		r.enricher = e
	}
}

func WithEnrichTimeouts(perCall, overall time.Duration) Option {
	return func(r *Router) {
		if perCall > 0 {
			r.enrichCallTimeout = perCall
		}
		if overall > 0 {
			r.enrichDeadline = overall
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func New(authorizer Authorizer, tags TagIndex, nodes NodeReader, recorder AuditRecorder, opts ...Option) (*Router, error) {
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if tags == nil {
		return nil, fmt.Errorf("tag index is required")
	}
	if nodes == nil {
		return nil, fmt.Errorf("node reader is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	r := &Router{
		authorizer:        authorizer,
		tags:              tags,
		nodes:             nodes,
		audit:             recorder,
		enrichCallTimeout: DefaultEnrichCallTimeout,
		enrichDeadline:    DefaultEnrichDeadline,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Discover runs a query for the calling identity in ctx.
//
// On quota exhaustion it returns a CodeRateLimited error together with a
// Result carrying only the quota state, and touches no index.
func (r *Router) Discover(ctx context.Context, q models.Query) (*models.Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "discovery.discover")
	defer span.End()

	if q.Text == "" && len(q.Tags) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a query text or at least one tag is required")
	}

	decision, err := r.authorizer.Authorize(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "unauthorized")
		var result *models.Result
		if decision != nil {
			r.metrics.IncrementSearch(decision.Identity.Tier.String(), string(dErrors.CodeOf(err)))
			result = &models.Result{Tier: decision.Identity.Tier, Quota: decision.Quota}
		}
		return result, err
	}
	tier := decision.Identity.Tier
	span.SetAttributes(attribute.String("caller.tier", tier.String()))

	tagHits, vectorHits, degraded, err := r.lookup(ctx, q)
	if err != nil {
		r.metrics.IncrementSearch(tier.String(), "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	items, err := r.merge(ctx, q, tagHits, vectorHits, now)
	if err != nil {
		r.metrics.IncrementSearch(tier.String(), "error")
		return nil, err
	}

	limit := decision.Limits.MaxResults
	if q.Limit > 0 && q.Limit < limit {
		limit = q.Limit
	}
	rank(items)
	if len(items) > limit {
		items = items[:limit]
	}

	partial := false
	if decision.Limits.FanOut {
		partial = r.enrich(ctx, items, previewQuery(q))
	} else {
		for i := range items {
			items[i].Endpoint = ""
		}
	}

	result := &models.Result{
		Items:             items,
		Degraded:          degraded,
		PartialEnrichment: partial,
		Tier:              tier,
		Quota:             decision.Quota,
	}

	if err := r.record(ctx, decision.Identity.Key, tier, q, result); err != nil {
		r.metrics.IncrementSearch(tier.String(), "error")
		return nil, err
	}

	if degraded {
		r.metrics.IncrementDegraded()
	}
	r.metrics.IncrementSearch(tier.String(), "ok")
	r.metrics.ObserveSearch(time.Since(start).Seconds(), len(items))
	span.SetAttributes(
		attribute.Int("discovery.items", len(items)),
		attribute.Bool("discovery.degraded", degraded),
		attribute.Bool("discovery.partial_enrichment", partial),
	)
	r.logger.InfoContext(ctx, "discovery completed",
		"request_id", requestcontext.RequestID(ctx),
		"tier", tier,
		"tags", []string(q.Tags),
		"items", len(items),
		"degraded", degraded,
		"partial_enrichment", partial,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// lookup runs the tag and vector lookups concurrently. A vector failure
// degrades the result; a tag index failure fails the search.
func (r *Router) lookup(ctx context.Context, q models.Query) (map[domain.Handle]domain.Tags, []vector.Match, bool, error) {
	var (
		tagHits    map[domain.Handle]domain.Tags
		vectorHits []vector.Match
		degraded   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	if len(q.Tags) > 0 {
		g.Go(func() error {
			hits, err := r.tags.Lookup(gctx, q.Tags)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "tag lookup failed")
			}
			tagHits = hits
			return nil
		})
	}
	if q.Text != "" {
		if r.vectors == nil {
			degraded = true
		} else {
			g.Go(func() error {
				matches, err := r.vectors.Search(gctx, q.Text)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					r.logger.WarnContext(ctx, "vector lookup unavailable, degrading to tags",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
					degraded = true
					return nil
				}
				vectorHits = matches
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, false, err
		}
		r.logger.ErrorContext(ctx, "discovery lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, nil, false, err
	}
	return tagHits, vectorHits, degraded, nil
}

// merge joins both hit sets on handle and re-checks every candidate against
// its record: GHOST and unknown nodes are dropped, and matched tags come from
// the record rather than the index.
func (r *Router) merge(ctx context.Context, q models.Query, tagHits map[domain.Handle]domain.Tags, vectorHits []vector.Match, now time.Time) ([]models.Item, error) {
	similarity := make(map[domain.Handle]float64, len(vectorHits))
	candidates := make([]domain.Handle, 0, len(tagHits)+len(vectorHits))
	for h := range tagHits {
		candidates = append(candidates, h)
	}
	for _, m := range vectorHits {
		if _, dup := tagHits[m.Handle]; !dup {
			candidates = append(candidates, m.Handle)
		}
		similarity[m.Handle] = m.Similarity
	}
	if len(candidates) == 0 {
		return []models.Item{}, nil
	}
	slices.Sort(candidates)

	nodes, err := r.nodes.GetMany(ctx, candidates)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load candidate nodes",
			"request_id", requestcontext.RequestID(ctx),
			"candidates", len(candidates),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load nodes")
	}

	items := make([]models.Item, 0, len(nodes))
	for _, n := range nodes {
		state := n.Presence(now)
		if !state.Searchable() {
			continue
		}
		matched := n.Tags.Intersect(q.Tags)
		sim, semantic := similarity[n.Handle]
		if len(matched) == 0 && !semantic {
			continue
		}
		item := itemFor(n, state, matched)
		if semantic {
			item.Similarity = &sim
		}
		items = append(items, item)
	}
	return items, nil
}

func itemFor(n *nodemodels.Node, state presence.State, matched domain.Tags) models.Item {
	if matched == nil {
		matched = domain.Tags{}
	}
	return models.Item{
		Handle:          n.Handle,
		Endpoint:        n.Endpoint,
		MatchedTags:     matched,
		Presence:        state,
		LastHeartbeatAt: n.LastHeartbeatAt,
		Enrichment:      models.EnrichmentNotAttempted,
	}
}

// rank orders semantic matches first by similarity, then everything by
// presence, then by most recent heartbeat. Handle breaks remaining ties.
func rank(items []models.Item) {
	slices.SortStableFunc(items, func(a, b models.Item) int {
		switch {
		case a.Similarity != nil && b.Similarity == nil:
			return -1
		case a.Similarity == nil && b.Similarity != nil:
			return 1
		case a.Similarity != nil && *a.Similarity != *b.Similarity:
			if *a.Similarity > *b.Similarity {
				return -1
			}
			return 1
		}
		if a.Presence.Rank() != b.Presence.Rank() {
			return a.Presence.Rank() - b.Presence.Rank()
		}
		if !a.LastHeartbeatAt.Equal(b.LastHeartbeatAt) {
			return b.LastHeartbeatAt.Compare(a.LastHeartbeatAt)
		}
		return strings.Compare(a.Handle.String(), b.Handle.String())
	})
}

// enrich asks every ONLINE item's node for a preview. Each call has its own
// timeout and all calls share one deadline; a failed call marks only its item.
// It reports whether any call failed.
func (r *Router) enrich(ctx context.Context, items []models.Item, query string) bool {
	if r.enricher == nil {
		return false
	}
	ctx, span := tracer.Start(ctx, "discovery.enrich")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.enrichDeadline)
	defer cancel()

	var wg sync.WaitGroup
	for i := range items {
		if items[i].Presence != presence.Online || items[i].Endpoint == "" {
			continue
		}
		wg.Add(1)
		go func(item *models.Item) {
			defer wg.Done()
			callCtx, callCancel := context.WithTimeout(ctx, r.enrichCallTimeout)
			defer callCancel()

			preview, err := r.enricher.Preview(callCtx, item.Endpoint, query)
			if err != nil {
				item.Enrichment = models.EnrichmentUnreachable
				r.metrics.IncrementEnrichment(string(models.EnrichmentUnreachable))
				r.logger.DebugContext(ctx, "node preview failed",
					"request_id", requestcontext.RequestID(ctx),
					"handle", item.Handle,
					"error", err,
				)
				return
			}
			item.Preview = preview
			item.Enrichment = models.EnrichmentOK
			r.metrics.IncrementEnrichment(string(models.EnrichmentOK))
		}(&items[i])
	}
	wg.Wait()

	partial := false
	for _, item := range items {
		if item.Enrichment == models.EnrichmentUnreachable {
			partial = true
			break
		}
	}
	span.SetAttributes(attribute.Bool("discovery.partial_enrichment", partial))
	return partial
}

func previewQuery(q models.Query) string {
	if q.Text != "" {
		return q.Text
	}
	return strings.Join(q.Tags, " ")
}

func (r *Router) record(ctx context.Context, caller string, tier domain.Tier, q models.Query, result *models.Result) error {
	matched := make([]domain.Handle, len(result.Items))
	for i, item := range result.Items {
		matched[i] = item.Handle
	}
	err := r.audit.Record(ctx, audit.Entry{
		Caller:         caller,
		Tier:           tier,
		QueryText:      q.Text,
		Tags:           q.Tags,
		MatchedHandles: matched,
		Degraded:       result.Degraded,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to record search audit entry",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record search")
	}
	return nil
}
