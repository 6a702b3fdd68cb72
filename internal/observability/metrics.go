package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries every collector the service exports. All collectors
// are registered against the registry passed to NewMetrics, which the
// metrics listener then serves.
type Metrics struct {
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	PoliciesCreated  prometheus.Counter
	PoliciesResolved *prometheus.CounterVec
	PayoutsTotal     prometheus.Counter

	PoolBalance    prometheus.Gauge
	ActiveExposure prometheus.Gauge

	AuditRowsWritten   prometheus.Counter
	AuditBatchDuration prometheus.Histogram
	AuditErrors        prometheus.Counter

	EventPublishDrops prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OpsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insurance_operations_applied_total",
			Help: "Operations that committed a state change.",
		}, []string{"operation"}),
		OpsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insurance_operations_rejected_total",
			Help: "Operations rejected before any state change, by reason.",
		}, []string{"operation", "reason"}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insurance_operation_duration_seconds",
			Help:    "Wall time per engine operation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"operation"}),

		PoliciesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "insurance_policies_created_total",
			Help: "Policies successfully created.",
		}),
		PoliciesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insurance_policies_resolved_total",
			Help: "Policies settled, by terminal status.",
		}, []string{"status"}),
		PayoutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "insurance_payouts_value_total",
			Help: "Cumulative value paid out to customers.",
		}),

		PoolBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insurance_pool_balance",
			Help: "Current liquidity pool balance.",
		}),
		ActiveExposure: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insurance_active_exposure",
			Help: "Sum of coverage amounts across unresolved policies.",
		}),

		AuditRowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "insurance_audit_rows_written_total",
			Help: "Audit rows flushed to Postgres.",
		}),
		AuditBatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "insurance_audit_batch_duration_seconds",
			Help:    "Wall time per audit batch write.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		AuditErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "insurance_audit_errors_total",
			Help: "Failed audit batch writes.",
		}),

		EventPublishDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "insurance_event_publish_drops_total",
			Help: "Outbound events dropped because the publish queue was full.",
		}),
	}
}
