package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all loops
	a.cancel()

	// Stop periodic maintenance first so no task races the teardown
	a.cron.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Closing the feed manager closes the message channel, which ends the
	// ingest pump
	err = a.wsManager.Close()
	if err != nil {
		a.logger.Error("feed-manager-close-error", zap.Error(err))
	}

	// Wait for all goroutines before releasing their dependencies
	a.wg.Wait()

	a.session.Close()

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	err = a.rdb.Close()
	if err != nil {
		a.logger.Error("redis-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")

	return nil
}
