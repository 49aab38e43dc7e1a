package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for vector lookups.
type Metrics struct {
	Lookups       *prometheus.CounterVec
	LookupLatency prometheus.Histogram
	BreakerOpen   prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_vector_lookups_total",
			Help: "Vector lookups by result",
		}, []string{"result"}), // result: "ok", "error", "timeout", "circuit_open"

		LookupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_vector_lookup_duration_seconds",
			Help:    "Embedding plus index query latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5},
		}),

		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_vector_circuit_open",
			Help: "1 while the vector circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncrementLookup(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveLookup(seconds float64) {
	if m != nil {
		m.LookupLatency.Observe(seconds)
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
