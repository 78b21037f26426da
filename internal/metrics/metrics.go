package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mentormatch"

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Open realtime connections (websocket and event stream).",
	})

	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "online_users",
		Help:      "Users with at least one identified connection.",
	})

	Events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "events_total",
		Help:      "Inbound realtime events by name and outcome.",
	}, []string{"event", "outcome"})

	Dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "dropped_total",
		Help:      "Envelopes dropped because a connection's outbound queue was full or closed.",
	})

	MessagesPersisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "messages_persisted_total",
		Help:      "Message persistence attempts by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(Connections, OnlineUsers, Events, Dropped, MessagesPersisted)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
