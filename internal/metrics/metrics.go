// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tableserve_orders_created_total",
		Help: "Orders successfully created.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableserve_status_transitions_total",
		Help: "Successful status transitions by target status.",
	}, []string{"status"})

	TransitionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tableserve_status_transitions_rejected_total",
		Help: "Status transitions rejected as illegal.",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableserve_websocket_clients",
		Help: "Currently connected viewer WebSocket clients.",
	})

	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tableserve_broadcast_drops_total",
		Help: "Events dropped because a client could not accept them.",
	})
)
