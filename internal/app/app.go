// Package app wires configuration into a running registry: stores, the access
// gate, discovery, background sweeps and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	accessmetrics "beacon/internal/access/metrics"
	"beacon/internal/access/policy"
	accessservice "beacon/internal/access/service"
	"beacon/internal/access/store/quota"
	"beacon/internal/access/verifier"
	"beacon/internal/audit"
	auditstore "beacon/internal/audit/store"
	"beacon/internal/discovery/enrich"
	discoveryhandler "beacon/internal/discovery/handler"
	discoverymetrics "beacon/internal/discovery/metrics"
	discovery "beacon/internal/discovery/service"
	nodehandler "beacon/internal/node/handler"
	nodemetrics "beacon/internal/node/metrics"
	nodeservice "beacon/internal/node/service"
	nodestore "beacon/internal/node/store"
	nudgemetrics "beacon/internal/nudge/metrics"
	"beacon/internal/nudge/scheduler"
	"beacon/internal/nudge/sender"
	nudgestore "beacon/internal/nudge/store"
	"beacon/internal/platform/config"
	"beacon/internal/platform/httpserver"
	"beacon/internal/platform/kafka"
	platformmetrics "beacon/internal/platform/metrics"
	"beacon/internal/platform/postgres"
	"beacon/internal/platform/redis"
	"beacon/internal/platform/tracing"
	presencemetrics "beacon/internal/presence/metrics"
	"beacon/internal/presence/sweeper"
	"beacon/internal/tagindex"
	httptransport "beacon/internal/transport/http"
	"beacon/internal/vector"
	vectormetrics "beacon/internal/vector/metrics"
	"beacon/pkg/platform/middleware/metadata"
)

const (
	verifyCacheTTL  = time.Minute
	shutdownTimeout = 10 * time.Second
)

// backends are the persistence backends selected by configuration.
type backends struct {
	Nodes  nodeStore
	Tags   tagindex.Index
	Audit  auditStore
	Nudges scheduler.RecordStore
	Quota  quota.Store
}

type nodeStore interface {
	nodeservice.Store
	sweeper.NodeLister
	discovery.NodeReader
}

type auditStore interface {
	audit.Store
	scheduler.SearchCounter
	ListRecent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// App is an assembled registry.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	Handler  http.Handler
	server   *http.Server
	sweeper  *sweeper.Sweeper
	nudges   *scheduler.Scheduler
	tracing  *tracing.Provider
	closers  []func() error
	stores   backends
	router   *discovery.Router
	nodesSvc *nodeservice.Service
	tiers    *policy.Live
	clock    func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithClock replaces the wall clock that stamps incoming requests.
func WithClock(clock func() time.Time) Option {
	return func(a *App) {
		a.clock = clock
	}
}

// New builds every component. Metrics register with the default prometheus
// registry, so New must be called once per process.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.build(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		return err
	}
	a.tracing = tp

	var checks []httptransport.HealthCheck
	stores, storeChecks, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	a.stores = stores
	checks = append(checks, storeChecks...)

	tiers, err := policy.NewLive(cfg.TierPolicyFile, a.logger)
	if err != nil {
		return err
	}
	a.tiers = tiers
	v, err := buildVerifier(cfg)
	if err != nil {
		return err
	}
	gate, err := accessservice.New(v, stores.Quota,
		accessservice.WithPolicy(tiers),
		accessservice.WithMetrics(accessmetrics.New()),
		accessservice.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	a.nodesSvc, err = nodeservice.New(stores.Nodes, stores.Tags,
		nodeservice.WithTierResolver(gate),
		nodeservice.WithMetrics(nodemetrics.New()),
		nodeservice.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	recorder, err := audit.NewPublisher(stores.Audit, audit.WithLogger(a.logger))
	if err != nil {
		return err
	}

	opts := []discovery.Option{
		discovery.WithEnricher(enrich.NewPreviewClient()),
		discovery.WithEnrichTimeouts(cfg.EnrichCallTimeout, cfg.EnrichDeadline),
		discovery.WithMetrics(discoverymetrics.New()),
		discovery.WithLogger(a.logger),
	}
	if cfg.ChromaURL != "" {
		gw, err := vector.NewGateway(
			vector.NewChromaIndex(cfg.ChromaURL, cfg.ChromaCollection),
			vector.NewOpenAIEmbedder(cfg.EmbedAPIKey, cfg.EmbedBaseURL, cfg.EmbedModel),
			vector.WithTimeout(cfg.VectorTimeout),
			vector.WithTopK(cfg.VectorTopK),
			vector.WithMetrics(vectormetrics.New()),
			vector.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		opts = append(opts, discovery.WithVectorSearcher(gw))
		checks = append(checks, httptransport.HealthCheck{Name: "chroma", Check: gw.Health})
	} else {
		a.logger.WarnContext(ctx, "chroma_url not set, text queries will be answered tag-only")
	}
	a.router, err = discovery.New(gate, stores.Tags, stores.Nodes, recorder, opts...)
	if err != nil {
		return err
	}

	sweeperOpts := []sweeper.Option{
		sweeper.WithInterval(cfg.PresenceSweepInterval),
		sweeper.WithMetrics(presencemetrics.New()),
		sweeper.WithLogger(a.logger),
	}
	producer, err := kafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return err
	}
	if producer != nil {
		a.closers = append(a.closers, func() error { producer.Close(); return nil })
		sweeperOpts = append(sweeperOpts, sweeper.WithPublisher(sweeper.NewStreamPublisher(producer)))
	}
	a.sweeper, err = sweeper.New(stores.Nodes, sweeperOpts...)
	if err != nil {
		return err
	}

	send, err := buildSender(cfg, a.logger)
	if err != nil {
		return err
	}
	a.nudges, err = scheduler.New(stores.Nodes, stores.Nudges, stores.Audit, send,
		scheduler.WithInterval(cfg.NudgeSweepInterval),
		scheduler.WithMetrics(nudgemetrics.New()),
		scheduler.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	a.Handler = httptransport.NewRouter(httptransport.Deps{
		Modules: []httptransport.Registrar{
			nodehandler.New(a.nodesSvc, a.logger),
			discoveryhandler.New(a.router, a.logger),
		},
		HealthChecks:   checks,
		Metrics:        platformmetrics.New(),
		Logger:         a.logger,
		TrustedProxies: proxies,
		Clock:          a.clock,
	})
	a.server = httpserver.New(cfg.Addr, a.Handler, cfg.EnrichDeadline)
	return nil
}

// openStores picks postgres and redis when configured, in-memory otherwise.
func (a *App) openStores(ctx context.Context) (backends, []httptransport.HealthCheck, error) {
	var (
		stores backends
		checks []httptransport.HealthCheck
	)

	if a.cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return stores, nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(db); err != nil {
			return stores, nil, err
		}
		nodes := nodestore.NewPostgres(db)
		stores.Nodes = nodes
		stores.Tags = tagindex.NewPostgresIndex(nodes)
		stores.Audit = auditstore.NewPostgres(db)
		stores.Nudges = nudgestore.NewPostgres(db)
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Critical: true, Check: pingCheck(db)})
	} else {
		a.logger.WarnContext(ctx, "database_url not set, using in-memory stores")
		stores.Nodes = nodestore.NewInMemoryStore()
		stores.Tags = tagindex.NewInMemoryIndex()
		stores.Audit = auditstore.NewInMemoryStore()
		stores.Nudges = nudgestore.NewInMemoryStore()
	}

	rdb, err := redis.New(ctx, a.cfg.RedisURL)
	if err != nil {
		return stores, nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
		stores.Quota = quota.NewRedisStore(rdb)
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Critical: true, Check: rdb.Health})
	} else {
		stores.Quota = quota.NewInMemoryStore()
	}
	return stores, checks, nil
}

func pingCheck(db *sql.DB) func(context.Context) error {
	return db.PingContext
}

func buildVerifier(cfg config.Config) (verifier.Verifier, error) {
	chain := verifier.Chain{}
	if cfg.JWTSigningKey != "" {
		chain = append(chain, verifier.NewJWTVerifier(cfg.JWTSigningKey))
	}
	if len(cfg.APIKeys) > 0 {
		keys, err := verifier.ParseStaticKeys(cfg.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("api_keys: %w", err)
		}
		chain = append(chain, verifier.NewStaticKeyVerifier(keys))
	}
	return verifier.NewCachingVerifier(chain, verifyCacheTTL), nil
}

func buildSender(cfg config.Config, logger *slog.Logger) (scheduler.Sender, error) {
	if cfg.SMTPAddr == "" {
		return sender.NewLogSender(logger), nil
	}
	s, err := sender.NewSMTPSender(sender.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return s, nil
}

// Run serves HTTP and runs the sweeps until ctx is cancelled, then shuts the
// server down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.sweeper.Run(gctx) })
	g.Go(func() error { return a.nudges.Run(gctx) })
	g.Go(func() error {
		if err := a.tiers.Watch(gctx); err != nil {
			a.logger.WarnContext(ctx, "tier policy hot reload disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.InfoContext(ctx, "beacon registry listening", "addr", a.cfg.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.logger.InfoContext(ctx, "shutting down")
		return a.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// SweepOnce runs one presence sweep and one nudge sweep. The presence sweep
// only establishes a baseline in a fresh process, so no transitions are
// published; it still refreshes the per-state gauges.
func (a *App) SweepOnce(ctx context.Context) error {
	if _, err := a.sweeper.Sweep(ctx); err != nil {
		return fmt.Errorf("presence sweep: %w", err)
	}
	report, err := a.nudges.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("nudge sweep: %w", err)
	}
	a.logger.InfoContext(ctx, "sweep finished",
		"nudges_sent", report.Sent,
		"nudges_skipped", report.Skipped,
		"nudges_failed", report.Failed,
	)
	return nil
}

// RecentSearches returns up to limit audit entries, newest first.
func (a *App) RecentSearches(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	entries, err := a.stores.Audit.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// Close releases connections and flushes spans. Safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
