package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for offline reminders.
type Metrics struct {
	Nudges        *prometheus.CounterVec
	SweepDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Nudges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_nudges_total",
			Help: "Offline reminders by kind and result (sent, skipped, failed)",
		}, []string{"kind", "result"}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_nudge_sweep_duration_seconds",
			Help:    "Duration of one nudge sweep",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementNudge(kind, result string) {
	if m != nil {
		m.Nudges.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) ObserveSweep(seconds float64) {
	if m != nil {
		m.SweepDuration.Observe(seconds)
	}
}
