package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsSettledTotal counts events paid out.
	EventsSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_events_settled_total",
		Help: "Total events settled and paid out",
	})

	// SettlementFailuresTotal counts settlement anomalies (anything other
	// than "already resolved").
	SettlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_settlement_failures_total",
		Help: "Total settlement attempts that failed unexpectedly",
	})

	// InferenceFailuresTotal counts closed markets with no inferable winner.
	InferenceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_winner_inference_failures_total",
		Help: "Total closed markets where no winning outcome could be inferred",
	})
)
