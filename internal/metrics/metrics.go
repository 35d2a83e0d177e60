// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settleup"

// Metrics holds every collector the server updates.
type Metrics struct {
	registry *prometheus.Registry

	RPCRequests *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec

	SettlementComputations prometheus.Counter
	SettlementTransactions prometheus.Histogram

	RecurringMaterialized prometheus.Counter
	RecurringFailures     prometheus.Counter
}

// New registers all collectors on a fresh registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of RPC requests by procedure and result code",
			},
			[]string{"procedure", "code"},
		),
		RPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "Duration of RPC requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"procedure"},
		),
		SettlementComputations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_computations_total",
			Help:      "Number of group balance computations",
		}),
		SettlementTransactions: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_transactions",
			Help:      "Transactions emitted per balance computation",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		RecurringMaterialized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_expenses_materialized_total",
			Help:      "Expenses created from recurring templates",
		}),
		RecurringFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_expense_failures_total",
			Help:      "Recurring templates that failed to materialize",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSettlement records one balance computation that produced txns transactions.
func (m *Metrics) ObserveSettlement(txns int) {
	m.SettlementComputations.Inc()
	m.SettlementTransactions.Observe(float64(txns))
}
