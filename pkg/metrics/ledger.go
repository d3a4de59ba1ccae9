package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ledger call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeReverted = "reverted"
)

// LedgerMetrics tracks latency and outcome of contract calls.
type LedgerMetrics struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_call_duration_seconds",
		Help:      "Latency of ledger contract calls including mining.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
	}, []string{"method"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_calls_total",
		Help:      "Ledger contract calls by method and outcome.",
	}, []string{"method", "outcome"})
	reg.MustRegister(duration, calls)
	return &LedgerMetrics{duration: duration, calls: calls}
}

func (l *LedgerMetrics) Observe(method, outcome string, took time.Duration) {
	if l == nil || l.duration == nil {
		return
	}
	method = normalizeLabel(method)
	l.duration.WithLabelValues(method).Observe(took.Seconds())
	l.calls.WithLabelValues(method, normalizeLabel(outcome)).Inc()
}
