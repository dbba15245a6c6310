// Package metrics exposes the hub's Prometheus collectors. Collectors are
// registered on the default registry and served at /metrics by httpapi.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks currently registered websocket clients.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "concierge_connected_clients",
		Help: "Number of currently registered clients.",
	})

	// ActiveGroups tracks currently existing groups.
	ActiveGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "concierge_active_groups",
		Help: "Number of currently existing groups.",
	})

	// MessagesRouted counts MESSAGE payloads by target type.
	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_messages_routed_total",
		Help: "MESSAGE payloads routed, labeled by target type.",
	}, []string{"target"})

	// FramesEnqueued counts frames pushed into client mailboxes.
	FramesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "concierge_frames_enqueued_total",
		Help: "Frames enqueued into client mailboxes.",
	})

	// FSRequests counts file endpoint requests by method.
	FSRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_fs_requests_total",
		Help: "File endpoint requests, labeled by HTTP method.",
	}, []string{"method"})
)
