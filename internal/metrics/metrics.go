// Package metrics exposes Prometheus counters and gauges for the demo
// trading engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "demo_trader"

// Metrics holds the engine's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Orders        *prometheus.CounterVec
	Rejections    *prometheus.CounterVec
	LedgerEntries *prometheus.CounterVec
	QuoteLookups  *prometheus.CounterVec
	QuoteLatency  prometheus.Histogram
	Balance       *prometheus.GaugeVec
	Holdings      prometheus.Gauge
	Subscribers   prometheus.Gauge
	BreakerState  *prometheus.GaugeVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order transitions by action and resulting status.",
		}, []string{"action", "status"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_rejections_total",
			Help:      "Rejected order operations by error kind.",
		}, []string{"kind"}),
		LedgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_entries_total",
			Help:      "Ledger entries appended by transaction type and segment.",
		}, []string{"type", "segment"}),
		QuoteLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_lookups_total",
			Help:      "Quote lookups by outcome: ok, fallback or unavailable.",
		}, []string{"outcome"}),
		QuoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_lookup_seconds",
			Help:      "Latency of live quote lookups.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		}),
		Balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segment_balance",
			Help:      "Current virtual balance per segment.",
		}, []string{"segment"}),
		Holdings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "holdings",
			Help:      "Number of open holdings.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected event stream subscribers.",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_open",
			Help:      "1 when the named circuit breaker is open.",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		m.Orders, m.Rejections, m.LedgerEntries, m.QuoteLookups, m.QuoteLatency,
		m.Balance, m.Holdings, m.Subscribers, m.BreakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetBalance records a segment balance.
func (m *Metrics) SetBalance(segment string, balance decimal.Decimal) {
	if m == nil {
		return
	}
	m.Balance.WithLabelValues(segment).Set(balance.InexactFloat64())
}

// OrderTransition counts an order reaching status.
func (m *Metrics) OrderTransition(action, status string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(action, status).Inc()
}

// Rejected counts a failed order or funds operation.
func (m *Metrics) Rejected(kind string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(kind).Inc()
}

// LedgerAppended counts a ledger entry.
func (m *Metrics) LedgerAppended(txnType, segment string) {
	if m == nil {
		return
	}
	m.LedgerEntries.WithLabelValues(txnType, segment).Inc()
}

// QuoteLookup counts a quote lookup outcome and observes its latency.
func (m *Metrics) QuoteLookup(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.QuoteLookups.WithLabelValues(outcome).Inc()
	m.QuoteLatency.Observe(seconds)
}

// SetHoldings records the number of open holdings.
func (m *Metrics) SetHoldings(n int) {
	if m == nil {
		return
	}
	m.Holdings.Set(float64(n))
}

// SetBreakerOpen records whether a circuit breaker is open.
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

// SetSubscribers records the number of connected stream subscribers.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}
