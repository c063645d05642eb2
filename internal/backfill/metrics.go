package backfill

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessedTotal counts queue outcomes by result.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_engine_backfill_jobs_total",
			Help: "Total backfill jobs by result",
		},
		[]string{"result"},
	)

	// PendingDepth tracks the pending list length.
	PendingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_engine_backfill_pending_depth",
		Help: "Backfill pending list length",
	})

	// ProcessingDepth tracks the processing list length.
	ProcessingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_engine_backfill_processing_depth",
		Help: "Backfill processing list length",
	})

	// DeadLetterDepth tracks the dead-letter list length.
	DeadLetterDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odds_engine_backfill_dead_letter_depth",
		Help: "Backfill dead-letter list length",
	})
)
