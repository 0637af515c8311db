package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgo/rotativos/api/internal/model"
)

const namespace = "rotativos"

// Collector records validation, queue, balance and job metrics.
type Collector struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	validations        *prometheus.CounterVec
	validationDuration prometheus.Histogram
	ruleFailures       *prometheus.CounterVec
	requests           *prometheus.CounterVec
	promotions         *prometheus.CounterVec
	queueChanges       *prometheus.CounterVec
	balanceChanges     *prometheus.CounterVec
	reconciledRows     prometheus.Counter
	reconcileDrift     prometheus.Counter
	reconcileDuration  prometheus.Histogram
}

// NewCollector creates a collector backed by its own registry
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		logger:   logger,
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Rule engine runs by suggested action",
		}, []string{"action", "blocked"}),
		validationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time taken by a rule engine run",
			Buckets:   prometheus.DefBuckets,
		}),
		ruleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_failures_total",
			Help:      "Rules that did not pass, by rule and severity",
		}, []string{"rule", "blocking"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Rotation requests by resulting status",
		}, []string{"status"}),
		promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_total",
			Help:      "Waiting list promotion attempts by outcome",
		}, []string{"outcome"}),
		queueChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waiting_list_changes_total",
			Help:      "Waiting list mutations by operation",
		}, []string{"op"}),
		balanceChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_changes_total",
			Help:      "Balance mutations by operation",
		}, []string{"op"}),
		reconciledRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_balances_total",
			Help:      "Balance rows recalculated by the reconciler",
		}),
		reconcileDrift: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_drift_total",
			Help:      "Balance rows whose stored counters differed from the recalculation",
		}),
		reconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time taken by a reconciler pass",
			Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300},
		}),
	}
}

// ObserveValidation records one engine run
func (c *Collector) ObserveValidation(action model.SuggestedAction, blocked bool, duration time.Duration) {
	c.validations.WithLabelValues(string(action), boolLabel(blocked)).Inc()
	c.validationDuration.Observe(duration.Seconds())
}

// ObserveRuleFailure records a rule that did not pass
func (c *Collector) ObserveRuleFailure(ruleID string, blocking bool) {
	c.ruleFailures.WithLabelValues(ruleID, boolLabel(blocking)).Inc()
}

// ObserveRequest records the status a rotation request ended in
func (c *Collector) ObserveRequest(status string) {
	c.requests.WithLabelValues(status).Inc()
}

// ObservePromotion records a promotion attempt
func (c *Collector) ObservePromotion(outcome model.PromotionOutcome) {
	c.promotions.WithLabelValues(string(outcome)).Inc()
}

// ObserveQueueChange records a waiting list mutation (enqueue, withdraw, promote, purge)
func (c *Collector) ObserveQueueChange(op string, n int) {
	if n <= 0 {
		return
	}
	c.queueChanges.WithLabelValues(op).Add(float64(n))
}

// ObserveBalanceChange records a balance mutation
func (c *Collector) ObserveBalanceChange(op string) {
	c.balanceChanges.WithLabelValues(op).Inc()
}

// ObserveReconcile records a reconciler pass
func (c *Collector) ObserveReconcile(rows, drifted int, duration time.Duration) {
	c.reconciledRows.Add(float64(rows))
	c.reconcileDrift.Add(float64(drifted))
	c.reconcileDuration.Observe(duration.Seconds())
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(c.logger.Handler(), slog.LevelError),
	})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
