// Package httptransport assembles the public HTTP surface: middleware chain,
// module handlers, health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"beacon/internal/platform/metrics"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/platform/middleware/auth"
	"beacon/pkg/platform/middleware/metadata"
	"beacon/pkg/platform/middleware/request"
	"beacon/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency. A failing critical check makes /healthz
// answer 503; a failing non-critical one only reports degraded.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type Deps struct {
	Modules      []Registrar
	HealthChecks []HealthCheck
	Metrics      *metrics.Metrics
	Logger       *slog.Logger

	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies metadata.TrustedProxies
	// Clock stamps each request; nil means time.Now.
	Clock func() time.Time
}

func NewRouter(d Deps) http.Handler {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.WithClock(clock))
	r.Use(metadata.ClientMetadata(d.TrustedProxies))
	r.Use(request.Logger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(d.Metrics.Middleware)
	r.Use(auth.ExtractCredential)

	r.Get("/healthz", healthHandler(d.HealthChecks))
	r.Handle("/metrics", metrics.Handler())

	for _, m := range d.Modules {
		m.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = "error: " + err.Error()
				if c.Critical {
					resp.Status = "unavailable"
					status = http.StatusServiceUnavailable
				} else if resp.Status == "ok" {
					resp.Status = "degraded"
				}
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
