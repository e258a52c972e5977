// Package metrics exposes Prometheus instrumentation for the watch-party server.
//
// Metrics registered here:
//
//	watchparty_rooms_active              gauge: rooms currently held in memory
//	watchparty_connections_active        gauge: open websocket connections
//	watchparty_events_total              counter: outbound events by type
//	watchparty_messages_dropped_total    counter: messages dropped for slow consumers
//	watchparty_playback_rejected_total   counter: playback updates rejected by reason
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "watchparty_rooms_active",
	Help: "Number of watch-party rooms held in memory.",
})

var ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "watchparty_connections_active",
	Help: "Number of open websocket connections.",
})

var Events = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchparty_events_total",
	Help: "Outbound events fanned out, by event type.",
}, []string{"type"})

var DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
	Name: "watchparty_messages_dropped_total",
	Help: "Messages dropped because a client's send queue was full.",
})

var RejectedPlaybackUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "watchparty_playback_rejected_total",
	Help: "Playback updates that were not applied, by reason.",
}, []string{"reason"})

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
