package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState exports the feed connection state
	// (0=disconnected, 1=connecting, 2=connected).
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_engine_feed_connection_state",
		Help: "Feed connection state (0=disconnected, 1=connecting, 2=connected)",
	})

	// SubscriptionCount tracks the number of subscribed token ids.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_engine_feed_subscribed_tokens",
		Help: "Number of token ids in the current feed subscription",
	})

	// MessagesReceivedTotal counts feed messages by event type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_engine_feed_messages_received_total",
			Help: "Total feed messages received",
		},
		[]string{"event_type"},
	)

	// MessagesDroppedTotal counts feed messages dropped before processing.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_engine_feed_messages_dropped_total",
			Help: "Total feed messages dropped before processing",
		},
		[]string{"reason"},
	)

	// ReconnectAttemptsTotal counts reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_feed_reconnect_attempts_total",
		Help: "Total feed reconnection attempts",
	})

	// ReconnectFailuresTotal counts failed reconnection attempts.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_feed_reconnect_failures_total",
		Help: "Total failed feed reconnection attempts",
	})
)
