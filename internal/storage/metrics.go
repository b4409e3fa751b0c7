package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts storage operations by attempt and outcome. A nil *Metrics
// is a valid no-op receiver so tests can skip registration entirely.
type Metrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recrusearch_storage_attempts_total",
			Help: "Storage operations attempted, including retries.",
		}, []string{"op"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recrusearch_storage_retries_total",
			Help: "Storage operations retried after a transient failure.",
		}, []string{"op"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recrusearch_storage_outcomes_total",
			Help: "Terminal storage operation outcomes by class.",
		}, []string{"op", "outcome"}),
	}
}

func (m *Metrics) observeAttempt(op string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(op).Inc()
}

func (m *Metrics) observeRetry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) observeOutcome(op, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(op, outcome).Inc()
}
