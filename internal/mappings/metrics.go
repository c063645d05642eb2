package mappings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveMappings tracks the number of active market mappings.
	ActiveMappings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_engine_active_mappings",
		Help: "Number of active market mappings in the current index",
	})

	// TokenSetSize tracks the deduplicated subscribable token set size.
	TokenSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_engine_token_set_size",
		Help: "Size of the deduplicated token subscription set",
	})

	// LoadFailuresTotal counts failed mapping loads.
	LoadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_mapping_load_failures_total",
		Help: "Total failed mapping index loads",
	})
)
