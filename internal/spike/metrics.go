package spike

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RejectedTotal counts ticks held back by the spike filter.
	RejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_spike_rejected_total",
		Help: "Total ticks held back as unconfirmed spikes",
	})

	// ConfirmedTotal counts spikes admitted after consistent observations.
	ConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_spike_confirmed_total",
		Help: "Total spikes admitted after consistent repeat observations",
	})
)
