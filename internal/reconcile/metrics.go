package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsClosedTotal counts events moved to CLOSED by expiry.
	EventsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_events_closed_total",
		Help: "Total events closed after passing their resolution date",
	})

	// HedgesFinalizedTotal counts hedge positions finalized by status.
	HedgesFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_engine_hedges_finalized_total",
			Help: "Total hedge positions finalized",
		},
		[]string{"status"},
	)
)
