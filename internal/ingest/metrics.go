package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksReceivedTotal counts ticks that reached the updater.
	TicksReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_ingest_ticks_total",
		Help: "Total ticks forwarded to the market state updater",
	})

	// TicksDroppedTotal counts ticks dropped before the updater.
	TicksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_engine_ingest_ticks_dropped_total",
			Help: "Total ticks dropped before reaching the updater",
		},
		[]string{"reason"},
	)
)
