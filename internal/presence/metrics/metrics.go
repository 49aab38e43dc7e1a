package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the presence sweep.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	NodesByState  *prometheus.GaugeVec
	SweepDuration prometheus.Histogram
	PublishErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_presence_transitions_total",
			Help: "Presence transitions observed by the sweep",
		}, []string{"from", "to"}),

		NodesByState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "beacon_presence_nodes",
			Help: "Nodes per presence state at the last sweep",
		}, []string{"state"}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_presence_sweep_duration_seconds",
			Help:    "Duration of one presence sweep",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "beacon_presence_publish_errors_total",
			Help: "Transitions that could not be published",
		}),
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) SetNodesByState(counts map[string]int) {
	if m != nil {
		for state, n := range counts {
			m.NodesByState.WithLabelValues(state).Set(float64(n))
		}
	}
}

func (m *Metrics) ObserveSweep(seconds float64) {
	if m != nil {
		m.SweepDuration.Observe(seconds)
	}
}

func (m *Metrics) IncrementPublishError() {
	if m != nil {
		m.PublishErrors.Inc()
	}
}
