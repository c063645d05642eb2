package backfill

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oddsync/odds-engine/internal/marketstate"
	"github.com/oddsync/odds-engine/internal/storage"
	"github.com/oddsync/odds-engine/internal/venue"
	"github.com/oddsync/odds-engine/pkg/types"
	"go.uber.org/zap"
)

// HistoryBackfiller processes one job: it fetches the venue's full price
// history for the job's token, normalizes it into bucketed points, inserts
// them with duplicate skipping, and refreshes the outcome's current
// probability from the latest point.
type HistoryBackfiller struct {
	venue        *venue.Client
	store        storage.Store
	fidelityMins int
	defaultSpan  time.Duration
	bucketWidth  time.Duration
	logger       *zap.Logger
}

// BackfillerConfig holds history backfiller configuration.
type BackfillerConfig struct {
	Venue        *venue.Client
	Store        storage.Store
	FidelityMins int
	DefaultSpan  time.Duration
	BucketWidth  time.Duration
	Logger       *zap.Logger
}

// NewHistoryBackfiller creates a HistoryBackfiller.
func NewHistoryBackfiller(cfg BackfillerConfig) *HistoryBackfiller {
	if cfg.FidelityMins <= 0 {
		cfg.FidelityMins = 60
	}
	if cfg.DefaultSpan <= 0 {
		cfg.DefaultSpan = 365 * 24 * time.Hour
	}
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = 5 * time.Minute
	}
	return &HistoryBackfiller{
		venue:        cfg.Venue,
		store:        cfg.Store,
		fidelityMins: cfg.FidelityMins,
		defaultSpan:  cfg.DefaultSpan,
		bucketWidth:  cfg.BucketWidth,
		logger:       cfg.Logger,
	}
}

// Process runs one backfill job.
func (b *HistoryBackfiller) Process(ctx context.Context, job *Job) error {
	end := time.Now().UTC()
	start := end.Add(-b.defaultSpan)
	if job.StartDate != nil && !job.StartDate.IsZero() {
		start = job.StartDate.UTC()
	}

	points, err := b.venue.FetchPriceHistory(ctx, job.TokenID, b.fidelityMins, start, end)
	if err != nil {
		return fmt.Errorf("fetch history for token %s: %w", job.TokenID, err)
	}

	if len(points) == 0 {
		b.logger.Info("backfill-no-history",
			zap.String("job-id", job.ID),
			zap.String("token-id", job.TokenID))
		return nil
	}

	rows := b.normalize(job, points)

	inserted, err := b.store.InsertOddsHistoryBatch(ctx, rows)
	if err != nil {
		return fmt.Errorf("insert history batch: %w", err)
	}

	latest := rows[len(rows)-1]
	err = b.store.UpdateOutcomeProbability(ctx, job.OutcomeID, latest.Probability)
	if err != nil {
		return fmt.Errorf("update outcome probability: %w", err)
	}

	b.logger.Info("backfill-job-done",
		zap.String("job-id", job.ID),
		zap.String("token-id", job.TokenID),
		zap.Int("fetched", len(points)),
		zap.Int("inserted", inserted),
		zap.Float64("latest-probability", latest.Probability))

	return nil
}

// normalize converts venue points into bucketed history rows, one row per
// bucket (the latest point in a bucket wins), in ascending bucket order.
// Venue points arrive time-ordered, so a later point for the same bucket
// simply overwrites the map entry.
func (b *HistoryBackfiller) normalize(job *Job, points []types.HistoryPoint) []storage.OddsHistoryPoint {
	byBucket := make(map[time.Time]storage.OddsHistoryPoint, len(points))
	for _, pt := range points {
		bucket := pt.Time().Truncate(b.bucketWidth)
		byBucket[bucket] = storage.OddsHistoryPoint{
			EventID:         job.EventID,
			OutcomeID:       job.OutcomeID,
			BucketTime:      bucket,
			Price:           pt.Price,
			Probability:     marketstate.Clamp01(pt.Price),
			ExternalTokenID: job.TokenID,
			Source:          storage.SourceBackfill,
		}
	}

	rows := make([]storage.OddsHistoryPoint, 0, len(byBucket))
	for _, row := range byBucket {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].BucketTime.Before(rows[j].BucketTime)
	})

	return rows
}
