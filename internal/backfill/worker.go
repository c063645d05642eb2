package backfill

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oddsync/odds-engine/internal/storage"
	"go.uber.org/zap"
)

// Processor handles one job. Implemented by HistoryBackfiller; tests
// substitute fakes.
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// Worker drains the queue serially, bounding load on the venue's history
// API. Ownership transfer in the queue is atomic, so running more than one
// worker is safe, just not the default.
type Worker struct {
	queue     *Queue
	processor Processor
	busyPoll  time.Duration
	idlePoll  time.Duration
	logger    *zap.Logger
}

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Queue     *Queue
	Processor Processor
	BusyPoll  time.Duration
	IdlePoll  time.Duration
	Logger    *zap.Logger
}

// NewWorker creates a Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.BusyPoll <= 0 {
		cfg.BusyPoll = 100 * time.Millisecond
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = 5 * time.Second
	}
	return &Worker{
		queue:     cfg.Queue,
		processor: cfg.Processor,
		busyPoll:  cfg.BusyPoll,
		idlePoll:  cfg.IdlePoll,
		logger:    cfg.Logger,
	}
}

// Run recovers stuck jobs, then polls the queue until ctx is done. The
// poll delay adapts: tight while jobs are flowing, relaxed when the queue
// is empty.
func (w *Worker) Run(ctx context.Context) error {
	recovered, err := w.queue.RecoverStuck(ctx)
	if err != nil {
		w.logger.Error("recover-stuck-jobs-failed",
			zap.Int("recovered", recovered),
			zap.Error(err))
	}

	delay := w.busyPoll
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		job, err := w.queue.Next(ctx)
		if errors.Is(err, ErrEmpty) {
			delay = w.idlePoll
			continue
		}
		if err != nil {
			w.logger.Error("backfill-next-failed", zap.Error(err))
			delay = w.idlePoll
			continue
		}
		delay = w.busyPoll

		w.runJob(ctx, job)
		w.observeDepths(ctx)
	}
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	err := w.processor.Process(ctx, job)
	if err != nil {
		failErr := w.queue.Fail(ctx, job, err)
		if failErr != nil {
			w.logger.Error("backfill-fail-bookkeeping-failed",
				zap.String("job-id", job.ID),
				zap.NamedError("cause", err),
				zap.Error(failErr))
		}
		return
	}

	err = w.queue.Complete(ctx, job)
	if err != nil {
		w.logger.Error("backfill-complete-bookkeeping-failed",
			zap.String("job-id", job.ID),
			zap.Error(err))
	}
}

func (w *Worker) observeDepths(ctx context.Context) {
	pending, processing, dead, err := w.queue.Depths(ctx)
	if err != nil {
		return
	}
	PendingDepth.Set(float64(pending))
	ProcessingDepth.Set(float64(processing))
	DeadLetterDepth.Set(float64(dead))
}

// EnqueueForMappings creates one pending job per mapped outcome token.
// Used by the periodic full history resync and the backfill CLI.
func EnqueueForMappings(ctx context.Context, queue *Queue, entries []*storage.ActiveMapping) (int, error) {
	enqueued := 0
	for _, am := range entries {
		for i := range am.Outcomes {
			o := &am.Outcomes[i]
			tokenID := o.ExternalTokenID
			if tokenID == "" {
				tokenID = legacyToken(am, o)
			}
			if tokenID == "" {
				continue
			}

			err := queue.Enqueue(ctx, &Job{
				EventID:   am.Event.ID,
				OutcomeID: o.ID,
				TokenID:   tokenID,
			})
			if err != nil {
				return enqueued, err
			}
			enqueued++
		}
	}
	return enqueued, nil
}

// legacyToken resolves the yes/no token for binary outcomes without a
// stored external token id.
func legacyToken(am *storage.ActiveMapping, o *storage.Outcome) string {
	switch {
	case strings.EqualFold(o.Name, "YES"):
		return am.Mapping.YesTokenID
	case strings.EqualFold(o.Name, "NO"):
		return am.Mapping.NoTokenID
	}
	for _, ot := range am.Mapping.OutcomeTokens {
		if ot.OutcomeID == o.ID {
			return ot.ExternalTokenID
		}
	}
	return ""
}
