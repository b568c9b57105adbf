// Package metrics exposes process-level counters for the engine and its
// jobs. Everything registers on the default prometheus registry and is
// served by the /metrics endpoint in cmd/server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mercury",
		Name:      "engine_events_total",
		Help:      "Events dispatched to the matching engine, by type.",
	}, []string{"type"})

	TradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mercury",
		Name:      "engine_trades_total",
		Help:      "Trades produced by matching.",
	})

	OrdersRested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mercury",
		Name:      "engine_orders_rested_total",
		Help:      "Order residuals added to a book.",
	})

	UnknownSymbolDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mercury",
		Name:      "engine_unknown_symbol_drops_total",
		Help:      "New orders dropped because their symbol has no book.",
	})

	CancelMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mercury",
		Name:      "engine_cancel_misses_total",
		Help:      "Cancels that did not match a resting order.",
	})

	RingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mercury",
		Name:      "ring_depth",
		Help:      "Events queued in the intake ring, sampled by the consumer.",
	})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mercury",
		Name:      "outbox_published_total",
		Help:      "Trades published from the outbox to Kafka.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
