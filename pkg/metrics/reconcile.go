package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics exposes drift between the local store and the ledger.
type ReconcileMetrics struct {
	drift          *prometheus.CounterVec
	pendingPurged  prometheus.Counter
	ledgerListings prometheus.Gauge
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_drift_total",
		Help:      "Properties whose mirrored field differs from the ledger.",
	}, []string{"field"})
	purged := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_pending_purged_total",
		Help:      "Stale pending listings removed by reconciliation.",
	})
	listings := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_property_counter",
		Help:      "Last propertyCounter value read from the contract.",
	})
	reg.MustRegister(drift, purged, listings)
	return &ReconcileMetrics{drift: drift, pendingPurged: purged, ledgerListings: listings}
}

func (r *ReconcileMetrics) IncDrift(field string) {
	if r == nil || r.drift == nil {
		return
	}
	r.drift.WithLabelValues(normalizeLabel(field)).Inc()
}

func (r *ReconcileMetrics) AddPendingPurged(n int) {
	if r == nil || r.pendingPurged == nil || n <= 0 {
		return
	}
	r.pendingPurged.Add(float64(n))
}

func (r *ReconcileMetrics) SetLedgerCounter(n int64) {
	if r == nil || r.ledgerListings == nil {
		return
	}
	r.ledgerListings.Set(float64(n))
}
