// Package metrics exposes Prometheus instrumentation for the ledger service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors behind a private registry so tests can create
// isolated instances without hitting the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	transactionsTotal   *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	balanceMismatches   prometheus.Gauge
	unbalancedTransfers prometheus.Gauge
	reconciliationRuns  prometheus.Counter
}

// New creates a Metrics instance with its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		transactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Transactions processed, labelled by type and outcome",
		}, []string{"type", "status"}),

		transactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_transaction_duration_seconds",
			Help:    "End-to-end processing duration per transaction type",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests, labelled by method, route and status code",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		balanceMismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_balance_mismatches",
			Help: "Accounts whose balance differs from the sum of their ledger entries, per last reconciliation run",
		}),

		unbalancedTransfers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_unbalanced_transfers",
			Help: "Transfers whose ledger entries do not form a zero-sum pair, per last reconciliation run",
		}),

		reconciliationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_reconciliation_runs_total",
			Help: "Completed reconciliation sweeps",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transactionsTotal,
		m.transactionDuration,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.balanceMismatches,
		m.unbalancedTransfers,
		m.reconciliationRuns,
	)

	return m
}

// ObserveTransaction records one processed transaction outcome
func (m *Metrics) ObserveTransaction(txType, status string, duration time.Duration) {
	m.transactionsTotal.WithLabelValues(txType, status).Inc()
	if duration > 0 {
		m.transactionDuration.WithLabelValues(txType).Observe(duration.Seconds())
	}
}

// ObserveReconciliation records the findings of one reconciliation sweep
func (m *Metrics) ObserveReconciliation(balanceMismatches, unbalancedTransfers int) {
	m.balanceMismatches.Set(float64(balanceMismatches))
	m.unbalancedTransfers.Set(float64(unbalancedTransfers))
	m.reconciliationRuns.Inc()
}

// Handler returns the scrape endpoint handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments HTTP requests. The route template is used as the
// path label to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
