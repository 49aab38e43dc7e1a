package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for node registration and heartbeats.
type Metrics struct {
	Registrations *prometheus.CounterVec
	Heartbeats    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_node_registrations_total",
			Help: "Register calls by result",
		}, []string{"result"}), // result: "created", "updated"

		Heartbeats: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_node_heartbeats_total",
			Help: "Heartbeats by outcome",
		}, []string{"outcome"}), // outcome: "applied", "replay", "stale", "not_registered"
	}
}

func (m *Metrics) IncrementRegistration(result string) {
	if m != nil {
		m.Registrations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementHeartbeat(outcome string) {
	if m != nil {
		m.Heartbeats.WithLabelValues(outcome).Inc()
	}
}
