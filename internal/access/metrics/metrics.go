package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the access gate.
type Metrics struct {
	Decisions         *prometheus.CounterVec
	VerificationFails *prometheus.CounterVec
	APIKeyDenials     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_access_decisions_total",
			Help: "Authorization decisions by tier and result",
		}, []string{"tier", "result"}), // result: "allowed", "rate_limited", "error"

		VerificationFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_access_verification_failures_total",
			Help: "Presented credentials that failed verification and fell back to explorer",
		}, []string{"scheme"}),

		APIKeyDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_access_api_key_denials_total",
			Help: "Valid API keys whose tier has no API access, served as explorer",
		}, []string{"tier"}),
	}
}

func (m *Metrics) IncrementDecision(tier, result string) {
	if m != nil {
		m.Decisions.WithLabelValues(tier, result).Inc()
	}
}

func (m *Metrics) IncrementVerificationFailure(scheme string) {
	if m != nil {
		m.VerificationFails.WithLabelValues(scheme).Inc()
	}
}

func (m *Metrics) IncrementAPIKeyDenial(tier string) {
	if m != nil {
		m.APIKeyDenials.WithLabelValues(tier).Inc()
	}
}
