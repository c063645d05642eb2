package marketstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksAppliedTotal counts ticks written to the market model.
	TicksAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_ticks_applied_total",
		Help: "Total accepted ticks applied to the market model",
	})

	// UnmappedTicksTotal counts ticks for tokens with no matching outcome.
	UnmappedTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_ticks_unmapped_total",
		Help: "Total ticks dropped because no outcome matched the token",
	})

	// BroadcastFailuresTotal counts failed update broadcasts.
	BroadcastFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_broadcast_failures_total",
		Help: "Total update broadcasts that failed to publish",
	})
)
