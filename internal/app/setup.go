package app

import (
	"context"
	"fmt"

	"github.com/oddsync/odds-engine/internal/backfill"
	"github.com/oddsync/odds-engine/internal/cronrunner"
	"github.com/oddsync/odds-engine/internal/ingest"
	"github.com/oddsync/odds-engine/internal/mappings"
	"github.com/oddsync/odds-engine/internal/marketstate"
	"github.com/oddsync/odds-engine/internal/pubsub"
	"github.com/oddsync/odds-engine/internal/reconcile"
	"github.com/oddsync/odds-engine/internal/settlement"
	"github.com/oddsync/odds-engine/internal/spike"
	"github.com/oddsync/odds-engine/internal/storage"
	"github.com/oddsync/odds-engine/internal/venue"
	"github.com/oddsync/odds-engine/pkg/config"
	"github.com/oddsync/odds-engine/pkg/healthprobe"
	"github.com/oddsync/odds-engine/pkg/httpserver"
	"github.com/oddsync/odds-engine/pkg/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	rdb := setupRedis(cfg)
	venueClient := venue.NewClient(cfg.VenueHistoryURL, cfg.VenueGammaURL, logger)
	publisher := pubsub.NewRedisPublisher(rdb, logger)

	filter := spike.New(spike.Config{
		Threshold:   cfg.SpikeThreshold,
		Consistency: cfg.SpikeConsistency,
		MinCount:    cfg.SpikeMinCount,
	})

	updater := marketstate.New(marketstate.Config{
		Store:       store,
		Filter:      filter,
		Publisher:   publisher,
		BucketWidth: cfg.BucketWidth,
		Logger:      logger,
	})

	mappingsSvc := mappings.New(mappings.Config{
		Store:           store,
		RefreshInterval: cfg.MappingRefreshInterval,
		Logger:          logger,
	})

	session, err := ingest.NewSession(ingest.Config{
		Mappings:     mappingsSvc,
		Filter:       filter,
		Updater:      updater,
		MaxSpread:    cfg.MaxSpread,
		CacheEntries: cfg.LastPriceCacheLen,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("setup ingest session: %w", err)
	}

	queue := backfill.NewQueue(rdb, cfg.BackfillMaxAttempts, logger)

	var worker *backfill.Worker
	if !opts.DisableBackfill {
		worker = setupBackfillWorker(cfg, logger, queue, venueClient, store)
	}

	reconciler := reconcile.New(reconcile.Config{
		Store:          store,
		PendingTimeout: cfg.HedgePendingTimeout,
		Logger:         logger,
	})

	settler := settlement.New(settlement.Config{
		Store:   store,
		Venue:   venueClient,
		FeeRate: cfg.SettlementFeeRate,
		Logger:  logger,
	})

	wsManager := setupFeedManager(cfg, logger)

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Prices:        session,
		Queue:         queue,
		Mappings:      mappingsSvc,
	})

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		store:         store,
		rdb:           rdb,
		venueClient:   venueClient,
		mappingsSvc:   mappingsSvc,
		session:       session,
		wsManager:     wsManager,
		queue:         queue,
		worker:        worker,
		publisher:     publisher,
		reconciler:    reconciler,
		settler:       settler,
		ctx:           ctx,
		cancel:        cancel,
	}
	a.cron = a.setupCron()

	return a, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	store, err := storage.NewPostgresStore(&storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres store: %w", err)
	}
	return store, nil
}

func setupRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func setupFeedManager(cfg *config.Config, logger *zap.Logger) *websocket.Manager {
	return websocket.New(websocket.Config{
		URL:                   cfg.VenueWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupBackfillWorker(
	cfg *config.Config,
	logger *zap.Logger,
	queue *backfill.Queue,
	venueClient *venue.Client,
	store storage.Store,
) *backfill.Worker {
	backfiller := backfill.NewHistoryBackfiller(backfill.BackfillerConfig{
		Venue:        venueClient,
		Store:        store,
		FidelityMins: cfg.BackfillFidelityMins,
		DefaultSpan:  cfg.BackfillDefaultSpan,
		BucketWidth:  cfg.BucketWidth,
		Logger:       logger,
	})

	return backfill.NewWorker(backfill.WorkerConfig{
		Queue:     queue,
		Processor: backfiller,
		BusyPoll:  cfg.BackfillBusyPoll,
		IdlePoll:  cfg.BackfillIdlePoll,
		Logger:    logger,
	})
}

// setupCron registers the periodic maintenance loops: expiring events,
// hedge reconciliation, resolution detection, and the full history resync.
func (a *App) setupCron() *cronrunner.Runner {
	cron := cronrunner.New(a.logger, a.ctx)

	cron.AddEvery("close-expired-events", a.cfg.ReconcileInterval, a.reconciler.CloseExpired)
	cron.AddEvery("reconcile-hedges", a.cfg.ReconcileInterval, a.reconciler.ReconcileHedges)
	cron.AddEvery("detect-resolutions", a.cfg.ResolutionInterval, a.settler.Sync)
	cron.AddEvery("history-resync", a.cfg.HistoryResyncEvery, func(ctx context.Context) error {
		enqueued, err := backfill.EnqueueForMappings(ctx, a.queue, a.mappingsSvc.Current().Entries())
		if err != nil {
			return err
		}
		a.logger.Info("history-resync-enqueued", zap.Int("jobs", enqueued))
		return nil
	})

	return cron
}
