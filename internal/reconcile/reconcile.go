// Package reconcile runs the periodic cleanup passes: closing events past
// their resolution date and finalizing hedge positions stuck in pending.
package reconcile

import (
	"context"
	"time"

	"github.com/oddsync/odds-engine/internal/storage"
	"go.uber.org/zap"
)

// Service is the reconciliation loop body. Each method is one cron task;
// failures are logged by the caller and never stop the other loops.
type Service struct {
	store          storage.Store
	pendingTimeout time.Duration
	logger         *zap.Logger
}

// Config holds reconciliation configuration.
type Config struct {
	Store          storage.Store
	PendingTimeout time.Duration
	Logger         *zap.Logger
}

// New creates a reconciliation service.
func New(cfg Config) *Service {
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 2 * time.Minute
	}
	return &Service{
		store:          cfg.Store,
		pendingTimeout: cfg.PendingTimeout,
		logger:         cfg.Logger,
	}
}

// CloseExpired moves ACTIVE mapped events past their resolution date to
// CLOSED. Payout happens later, once the resolution sync confirms the
// winner.
func (s *Service) CloseExpired(ctx context.Context) error {
	closed, err := s.store.CloseExpiredEvents(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	if closed > 0 {
		s.logger.Info("expired-events-closed", zap.Int("count", closed))
		EventsClosedTotal.Add(float64(closed))
	}

	return nil
}

// ReconcileHedges finalizes hedge positions pending longer than the
// timeout: with an external order id recorded the position is optimistically
// marked hedged, without one it is failed. Forward progress wins over
// perfect verification; nothing stays pending forever.
func (s *Service) ReconcileHedges(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.pendingTimeout)

	hedges, err := s.store.ListPendingHedges(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, h := range hedges {
		status := storage.HedgeStatusHedged
		reason := ""
		if h.ExternalOrderID == "" {
			status = storage.HedgeStatusFailed
			reason = "no external order id after pending timeout"
		}

		err = s.store.FinalizeHedge(ctx, h.ID, status, reason)
		if err != nil {
			s.logger.Error("hedge-finalize-failed",
				zap.String("hedge-id", h.ID),
				zap.Error(err))
			continue
		}

		s.logger.Info("hedge-finalized",
			zap.String("hedge-id", h.ID),
			zap.String("status", status))
		HedgesFinalizedTotal.WithLabelValues(status).Inc()
	}

	return nil
}
