package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics of the reconciliation service.
type Metrics struct {
	StatusWrites      *prometheus.CounterVec
	StaleFallbacks    prometheus.Counter
	Reassignments     *prometheus.CounterVec
	ViewerFailures    *prometheus.CounterVec
	AuditDropped      prometheus.Counter
	LedgerReloadTime  prometheus.Histogram
	NotificationsSent prometheus.Counter
}

// NewMetrics registers the metrics on reg under namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StatusWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_writes_total",
			Help:      "Ledger status writes by target status",
		}, []string{"status"}),
		StaleFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_cache_fallbacks_total",
			Help:      "Updates that matched no row and fell back to an insert",
		}),
		Reassignments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reassignments_total",
			Help:      "Item reassignments by kind",
		}, []string{"kind"}),
		ViewerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_failures_total",
			Help:      "Failed calls to the model viewer by operation",
		}, []string{"operation"}),
		AuditDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_dropped_total",
			Help:      "History records that could not be written",
		}),
		LedgerReloadTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_reload_seconds",
			Help:      "Time taken to reload and rebuild a project ledger",
			Buckets:   prometheus.DefBuckets,
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Web push alerts delivered to subscribers",
		}),
	}
}

// NewNop returns metrics registered on a private registry, for tests and tools.
func NewNop() *Metrics {
	return NewMetrics("nop", prometheus.NewRegistry())
}
