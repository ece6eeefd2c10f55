// Package metrics exposes Prometheus collectors for the chat server,
// following the teacher's metrics.go pattern: package-level collectors
// registered against a dedicated Registry, served over /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "Current number of open websocket connections",
	})

	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_connections_total",
		Help: "Total number of websocket connections accepted",
	})

	ConnectionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connections_rejected_total",
		Help: "Connections rejected by admission control, by reason",
	}, []string{"reason"})

	MessagesBroadcast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_broadcast_total",
		Help: "Total number of chat messages fanned out to subscribers",
	})

	DBPoolNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_dbpool_nodes",
		Help: "Current number of connection-pool nodes, of any state",
	})

	DBPoolIdle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_dbpool_idle",
		Help: "Current number of Iddle connection-pool nodes",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_http_requests_total",
		Help: "Total HTTP requests served, by route and status class",
	}, []string{"route", "status_class"})
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		ConnectionsActive,
		ConnectionsTotal,
		ConnectionsRejected,
		MessagesBroadcast,
		DBPoolNodes,
		DBPoolIdle,
		HTTPRequestsTotal,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
