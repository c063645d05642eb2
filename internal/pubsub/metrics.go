package pubsub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesPublishedTotal counts published update payloads.
	UpdatesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_updates_published_total",
		Help: "Total canonical update payloads published",
	})

	// HeartbeatFailuresTotal counts failed heartbeat writes.
	HeartbeatFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_heartbeat_failures_total",
		Help: "Total failed heartbeat key writes",
	})
)
