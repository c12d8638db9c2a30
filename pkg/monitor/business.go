package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	TransactionsAttachedTotal *prometheus.CounterVec
	LifecycleTransitionsTotal *prometheus.CounterVec
	ReconcileOutcomesTotal    *prometheus.CounterVec
	ReconcilePassDuration     *prometheus.HistogramVec
	ReconcilePassErrorsTotal  *prometheus.CounterVec
	OutboxPendingMessages     prometheus.Gauge
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = NewBusinessMetrics(prometheus.DefaultRegisterer)
}

// NewBusinessMetrics registers the metric set on reg
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	factory := promauto.With(reg)
	return &BusinessMetrics{
		TransactionsAttachedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_transactions_attached_total",
			Help: "Attach attempts by aggregate kind and result",
		}, []string{"kind", "result"}),
		LifecycleTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_lifecycle_transitions_total",
			Help: "Aggregate lifecycle transitions by kind and target state",
		}, []string{"kind", "state"}),
		ReconcileOutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_reconcile_outcomes_total",
			Help: "Outstanding transactions processed by reconciliation, by outcome",
		}, []string{"chain", "outcome"}),
		ReconcilePassDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_reconcile_pass_duration_seconds",
			Help:    "Duration of one reconciliation pass over a scope",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain"}),
		ReconcilePassErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_reconcile_pass_errors_total",
			Help: "Reconciliation passes that returned an error, by error name",
		}, []string{"chain", "error"}),
		OutboxPendingMessages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "market_outbox_pending_messages",
			Help: "Outbox messages waiting for the relay",
		}),
	}
}
