package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"beacon/internal/platform/tracing"
	"beacon/internal/vector/metrics"
	"beacon/pkg/domain"
	"beacon/pkg/platform/circuit"
	"beacon/pkg/platform/sentinel"
	"beacon/pkg/requestcontext"
)

const (
	DefaultTimeout = 1500 * time.Millisecond
	DefaultTopK    = 20
)

// Gateway bounds every lookup by a timeout and stops calling the index while
// its circuit breaker is open. All failures surface as sentinel.ErrUnavailable
// so discovery can degrade to tag-only results.
type Gateway struct {
	index    Index
	embedder Embedder
	breaker  *circuit.Breaker
	timeout  time.Duration
	topK     int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithTopK(k int) Option {
	return func(g *Gateway) {
		if k > 0 {
			g.topK = k
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Gateway) {
		g.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func NewGateway(index Index, embedder Embedder, opts ...Option) (*Gateway, error) {
	if index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	g := &Gateway{
		index:    index,
		embedder: embedder,
		breaker:  circuit.New("vector", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		timeout:  DefaultTimeout,
		topK:     DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Search embeds text and returns one match per owner, best similarity first.
// Similarity is 1 - cosine distance.
//
// Errors: sentinel.ErrUnavailable when the breaker is open, the lookup times
// out or either collaborator fails.
func (g *Gateway) Search(ctx context.Context, text string) ([]Match, error) {
	ctx, span := tracing.Tracer("beacon/vector").Start(ctx, "vector.search")
	defer span.End()

	if !g.breaker.Allow() {
		g.metrics.IncrementLookup("circuit_open")
		span.SetStatus(codes.Error, "circuit open")
		return nil, fmt.Errorf("vector circuit open: %w", sentinel.ErrUnavailable)
	}

	start := time.Now()
	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	hits, err := g.lookup(lookupCtx, text)
	g.metrics.ObserveLookup(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			// Caller went away; not the index's fault.
			return nil, ctx.Err()
		}
		result := "error"
		if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			result = "timeout"
		}
		g.recordFailure(ctx, result, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return nil, fmt.Errorf("vector lookup: %w: %w", sentinel.ErrUnavailable, err)
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.metrics.SetBreakerOpen(false)
		g.logger.InfoContext(ctx, "vector circuit closed")
	}
	g.metrics.IncrementLookup("ok")

	matches := collapse(hits)
	span.SetAttributes(attribute.Int("vector.hits", len(hits)), attribute.Int("vector.matches", len(matches)))
	return matches, nil
}

func (g *Gateway) lookup(ctx context.Context, text string) ([]Hit, error) {
	embedding, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return g.index.Query(ctx, embedding, g.topK)
}

func (g *Gateway) recordFailure(ctx context.Context, result string, err error) {
	g.metrics.IncrementLookup(result)
	_, change := g.breaker.RecordFailure()
	if change.Opened {
		g.metrics.SetBreakerOpen(true)
		g.logger.WarnContext(ctx, "vector circuit opened",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	g.logger.WarnContext(ctx, "vector lookup failed",
		"request_id", requestcontext.RequestID(ctx),
		"result", result,
		"error", err,
	)
}

// Health reports whether the index answers its heartbeat.
func (g *Gateway) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.index.Health(ctx)
}

// collapse keeps the best-scoring document per owner and drops owners that are
// not valid handles.
func collapse(hits []Hit) []Match {
	best := make(map[domain.Handle]Match, len(hits))
	for _, h := range hits {
		handle, err := domain.ParseHandle(h.Owner)
		if err != nil {
			continue
		}
		sim := 1 - h.Distance
		if cur, ok := best[handle]; ok && cur.Similarity >= sim {
			continue
		}
		best[handle] = Match{Handle: handle, DocumentID: h.DocumentID, Similarity: sim}
	}

	out := make([]Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}
