// Package backfill implements the crash-safe work queue that fills in full
// price history for newly mapped markets. Jobs live in exactly one of three
// Redis lists (pending, processing, dead) and only move between them via
// atomic operations, so a crash can never lose a job.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Queue list keys. Attempt counts live in a hash keyed by job id so a
// job's payload stays byte-identical across list moves.
const (
	KeyPending    = "backfill:pending"
	KeyProcessing = "backfill:processing"
	KeyDead       = "backfill:dead"
	KeyAttempts   = "backfill:attempts"
)

// ErrEmpty is returned by Next when no job is pending.
var ErrEmpty = errors.New("backfill queue empty")

// Job is one unit of history backfill work.
type Job struct {
	ID        string     `json:"id"`
	EventID   string     `json:"event_id"`
	OutcomeID string     `json:"outcome_id"`
	TokenID   string     `json:"token_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Attempts  int        `json:"-"`

	raw string // payload as stored in the list, set by Next
}

// DeadJob is a job that exhausted its retry budget, with its failure reason.
type DeadJob struct {
	Job
	FailedAt time.Time `json:"failed_at"`
	Reason   string    `json:"reason"`
}

// lister is the subset of redis commands the queue uses; *redis.Client
// satisfies it, and tests substitute a fake built on the redis result
// constructors.
type lister interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

// Queue is the Redis-backed backfill queue.
type Queue struct {
	rdb         lister
	maxAttempts int
	logger      *zap.Logger
}

// NewQueue creates a Queue on the given redis client.
func NewQueue(rdb lister, maxAttempts int, logger *zap.Logger) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Queue{
		rdb:         rdb,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Enqueue adds a job to pending, assigning an id if absent.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	err = q.rdb.LPush(ctx, KeyPending, string(payload)).Err()
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	q.logger.Debug("backfill-job-enqueued",
		zap.String("job-id", job.ID),
		zap.String("token-id", job.TokenID))

	return nil
}

// Next atomically moves one job from pending to processing and increments
// its attempt counter. An empty pending list yields ErrEmpty.
func (q *Queue) Next(ctx context.Context) (*Job, error) {
	payload, err := q.rdb.LMove(ctx, KeyPending, KeyProcessing, "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("move pending to processing: %w", err)
	}

	var job Job
	err = json.Unmarshal([]byte(payload), &job)
	if err != nil {
		// Undecodable payloads go straight to dead: retrying cannot fix them.
		_ = q.rdb.LRem(ctx, KeyProcessing, 1, payload).Err()
		_ = q.rdb.LPush(ctx, KeyDead, payload).Err()
		return nil, fmt.Errorf("unmarshal job payload: %w", err)
	}
	job.raw = payload

	attempts, err := q.rdb.HIncrBy(ctx, KeyAttempts, job.ID, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("increment attempts: %w", err)
	}
	job.Attempts = int(attempts)

	return &job, nil
}

// Complete removes a finished job from processing.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	err := q.rdb.LRem(ctx, KeyProcessing, 1, job.raw).Err()
	if err != nil {
		return fmt.Errorf("remove from processing: %w", err)
	}
	_ = q.rdb.HDel(ctx, KeyAttempts, job.ID).Err()

	JobsProcessedTotal.WithLabelValues("completed").Inc()

	return nil
}

// Fail removes a job from processing and either re-enqueues it or, once
// the attempt budget is spent, dead-letters it with the failure reason.
// Dead jobs are never retried automatically.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) error {
	err := q.rdb.LRem(ctx, KeyProcessing, 1, job.raw).Err()
	if err != nil {
		return fmt.Errorf("remove from processing: %w", err)
	}

	if job.Attempts < q.maxAttempts {
		err = q.rdb.LPush(ctx, KeyPending, job.raw).Err()
		if err != nil {
			return fmt.Errorf("re-enqueue job: %w", err)
		}

		q.logger.Warn("backfill-job-retrying",
			zap.String("job-id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Error(cause))
		JobsProcessedTotal.WithLabelValues("retried").Inc()

		return nil
	}

	dead := DeadJob{
		Job:      *job,
		FailedAt: time.Now().UTC(),
		Reason:   cause.Error(),
	}
	payload, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("marshal dead job: %w", err)
	}

	err = q.rdb.LPush(ctx, KeyDead, string(payload)).Err()
	if err != nil {
		return fmt.Errorf("dead-letter job: %w", err)
	}
	_ = q.rdb.HDel(ctx, KeyAttempts, job.ID).Err()

	q.logger.Error("backfill-job-dead-lettered",
		zap.String("job-id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.Error(cause))
	JobsProcessedTotal.WithLabelValues("dead").Inc()

	return nil
}

// RecoverStuck moves everything left in processing back to pending. Run at
// startup so a prior crash cannot strand a job mid-flight.
func (q *Queue) RecoverStuck(ctx context.Context) (int, error) {
	recovered := 0
	for {
		_, err := q.rdb.LMove(ctx, KeyProcessing, KeyPending, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return recovered, fmt.Errorf("recover stuck job: %w", err)
		}
		recovered++
	}

	if recovered > 0 {
		q.logger.Info("recovered-stuck-backfill-jobs", zap.Int("count", recovered))
	}

	return recovered, nil
}

// Depths returns the lengths of the pending, processing, and dead lists.
func (q *Queue) Depths(ctx context.Context) (pending, processing, dead int64, err error) {
	pending, err = q.rdb.LLen(ctx, KeyPending).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("pending depth: %w", err)
	}
	processing, err = q.rdb.LLen(ctx, KeyProcessing).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("processing depth: %w", err)
	}
	dead, err = q.rdb.LLen(ctx, KeyDead).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("dead depth: %w", err)
	}
	return pending, processing, dead, nil
}

// DeadLetters returns up to limit dead-letter payloads, newest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]DeadJob, error) {
	if limit <= 0 {
		limit = 100
	}

	payloads, err := q.rdb.LRange(ctx, KeyDead, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}

	jobs := make([]DeadJob, 0, len(payloads))
	for _, payload := range payloads {
		var dead DeadJob
		if json.Unmarshal([]byte(payload), &dead) != nil {
			dead.Reason = "undecodable payload"
		}
		jobs = append(jobs, dead)
	}

	return jobs, nil
}
