package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for discovery.
type Metrics struct {
	Searches      *prometheus.CounterVec
	Degraded      prometheus.Counter
	Enrichments   *prometheus.CounterVec
	SearchLatency prometheus.Histogram
	ResultSize    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Searches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_discovery_searches_total",
			Help: "Discovery requests by tier and result",
		}, []string{"tier", "result"}),

		Degraded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_discovery_degraded_total",
			Help: "Searches answered without vector results",
		}),

		Enrichments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_discovery_enrichments_total",
			Help: "Node preview calls by status",
		}, []string{"status"}),

		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_discovery_search_duration_seconds",
			Help:    "End-to-end discovery latency",
			Buckets: prometheus.DefBuckets,
		}),

		ResultSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_discovery_result_items",
			Help:    "Items returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
		}),
	}
}

func (m *Metrics) IncrementSearch(tier, result string) {
	if m != nil {
		m.Searches.WithLabelValues(tier, result).Inc()
	}
}

func (m *Metrics) IncrementDegraded() {
	if m != nil {
		m.Degraded.Inc()
	}
}

func (m *Metrics) IncrementEnrichment(status string) {
	if m != nil {
		m.Enrichments.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveSearch(seconds float64, items int) {
	if m != nil {
		m.SearchLatency.Observe(seconds)
		m.ResultSize.Observe(float64(items))
	}
}
