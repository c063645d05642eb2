package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("feed-url", a.cfg.VenueWSURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	// Load mappings once before connecting so the first subscription covers
	// the full active token set.
	_, err := a.mappingsSvc.Load(a.ctx)
	if err != nil {
		return fmt.Errorf("initial mapping load: %w", err)
	}

	// Start the feed connection
	err = a.wsManager.Start()
	if err != nil {
		return fmt.Errorf("start feed manager: %w", err)
	}

	// Start mapping refresh loop
	a.wg.Add(1)
	go a.runMappingRefresh()

	// Start subscription pump
	a.wg.Add(1)
	go a.runSubscriptionPump()

	// Start ingest session
	a.wg.Add(1)
	go a.runIngest()

	// Start backfill worker
	if a.worker != nil {
		a.wg.Add(1)
		go a.runBackfillWorker()
	}

	// Start liveness heartbeat
	a.wg.Add(1)
	go a.runHeartbeat()

	// Start feed state reporting
	a.wg.Add(1)
	go a.runStateReporter()

	// Start periodic maintenance
	a.cron.Start()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runMappingRefresh() {
	defer a.wg.Done()
	err := a.mappingsSvc.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("mapping-refresh-error", zap.Error(err))
	}
}

// runSubscriptionPump forwards token set changes from the mapping refresh
// loop to the feed connection.
func (a *App) runSubscriptionPump() {
	defer a.wg.Done()
	pumpSubscriptions(a.ctx, a.mappingsSvc.ResubscribeChan(), a.wsManager, a.logger)
}

// subscriber is the feed side of the subscription pump.
type subscriber interface {
	SetSubscription(ctx context.Context, tokenIDs []string) error
}

func pumpSubscriptions(ctx context.Context, changes <-chan []string, sub subscriber, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case tokens, ok := <-changes:
			if !ok {
				return
			}
			err := sub.SetSubscription(ctx, tokens)
			if err != nil {
				logger.Error("subscription-update-failed",
					zap.Int("token-count", len(tokens)),
					zap.Error(err))
				continue
			}
			logger.Info("subscription-updated", zap.Int("token-count", len(tokens)))
		}
	}
}

func (a *App) runIngest() {
	defer a.wg.Done()
	err := a.session.Run(a.ctx, a.wsManager.MessageChan())
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("ingest-session-error", zap.Error(err))
	}
}

func (a *App) runBackfillWorker() {
	defer a.wg.Done()
	err := a.worker.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("backfill-worker-error", zap.Error(err))
	}
}

func (a *App) runHeartbeat() {
	defer a.wg.Done()
	err := a.publisher.Heartbeat(a.ctx, a.cfg.HeartbeatInterval, a.cfg.HeartbeatTTL)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("heartbeat-error", zap.Error(err))
	}
}

// runStateReporter mirrors the feed connection state into the health probe.
func (a *App) runStateReporter() {
	defer a.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.healthChecker.SetComponent("feed", a.wsManager.State().String())
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
