// Package cronrunner schedules the engine's fixed-interval tasks. A task
// failure is logged and swallowed; it never stops the other loops.
package cronrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one periodic loop body.
type Task func(ctx context.Context) error

// Runner wraps a cron scheduler with a base context and uniform error
// handling.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

// New creates a Runner bound to baseCtx.
func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// AddEvery schedules a task on a fixed interval. The task is skipped once
// the base context is cancelled.
func (r *Runner) AddEvery(name string, interval time.Duration, task Task) {
	r.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		if r.baseCtx.Err() != nil {
			return
		}

		start := time.Now()
		err := task(r.baseCtx)
		if err != nil && r.baseCtx.Err() == nil {
			r.logger.Error("periodic-task-failed",
				zap.String("task", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}

		r.logger.Debug("periodic-task-done",
			zap.String("task", name),
			zap.Duration("elapsed", time.Since(start)))
	}))
}

// Start begins scheduling.
func (r *Runner) Start() {
	r.logger.Info("cron-runner-started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running tasks to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron-runner-stopped")
}

// Validate guards against a zero interval slipping through config.
func Validate(name string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got %s", name, interval)
	}
	return nil
}
