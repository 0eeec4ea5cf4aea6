// Package metrics exposes Prometheus counters for quotes, settlements and
// idempotent request handling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements billing.Observer and idempotency.Observer.
type Metrics struct {
	quotes      *prometheus.CounterVec
	settlements *prometheus.CounterVec
	idempotency *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// New registers the counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "table",
			Name:      "payment_quotes_total",
			Help:      "Payment quotes created, by mode.",
		}, []string{"mode"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "table",
			Name:      "payment_settlements_total",
			Help:      "Settlement attempts, by mode and result code.",
		}, []string{"mode", "result"}),
		idempotency: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "table",
			Name:      "idempotency_outcomes_total",
			Help:      "Idempotency executor outcomes.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "table",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.quotes, m.settlements, m.idempotency, m.requests)
	return m
}

func (m *Metrics) QuoteCreated(mode string) { m.quotes.WithLabelValues(mode).Inc() }

func (m *Metrics) SettlementResult(mode, result string) {
	m.settlements.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) IdempotencyOutcome(outcome string) { m.idempotency.WithLabelValues(outcome).Inc() }

// Request counts one served HTTP request.
func (m *Metrics) Request(method, route, status string) {
	m.requests.WithLabelValues(method, route, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
