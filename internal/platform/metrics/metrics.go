package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-level Prometheus metrics. Storage-level
// counters live with the storage package; these cover the domain pipeline.
type Metrics struct {
	GateDecisions   *prometheus.CounterVec
	EnvelopesSealed prometheus.Counter
	EnvelopesOpened prometheus.Counter
	SealedBytes     prometheus.Histogram
}

// New creates and registers all metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recrusearch_gate_decisions_total",
			Help: "Gate authorization decisions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		EnvelopesSealed: factory.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_envelopes_sealed_total",
			Help: "Payloads sealed and persisted to content-addressed storage.",
		}),
		EnvelopesOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_envelopes_opened_total",
			Help: "Envelopes fetched and decrypted successfully.",
		}),
		SealedBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recrusearch_sealed_envelope_bytes",
			Help:    "Serialized envelope sizes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
	}
}

// ObserveGateDecision records one authorization outcome.
func (m *Metrics) ObserveGateDecision(operation, outcome string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(operation, outcome).Inc()
}

// ObserveSeal records a successful seal and its envelope size.
func (m *Metrics) ObserveSeal(size int) {
	if m == nil {
		return
	}
	m.EnvelopesSealed.Inc()
	m.SealedBytes.Observe(float64(size))
}

// ObserveOpen records a successful open.
func (m *Metrics) ObserveOpen() {
	if m == nil {
		return
	}
	m.EnvelopesOpened.Inc()
}
