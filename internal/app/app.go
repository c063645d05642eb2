package app

import (
	"context"
	"sync"

	"github.com/oddsync/odds-engine/internal/backfill"
	"github.com/oddsync/odds-engine/internal/cronrunner"
	"github.com/oddsync/odds-engine/internal/ingest"
	"github.com/oddsync/odds-engine/internal/mappings"
	"github.com/oddsync/odds-engine/internal/pubsub"
	"github.com/oddsync/odds-engine/internal/reconcile"
	"github.com/oddsync/odds-engine/internal/settlement"
	"github.com/oddsync/odds-engine/internal/storage"
	"github.com/oddsync/odds-engine/internal/venue"
	"github.com/oddsync/odds-engine/pkg/config"
	"github.com/oddsync/odds-engine/pkg/healthprobe"
	"github.com/oddsync/odds-engine/pkg/httpserver"
	"github.com/oddsync/odds-engine/pkg/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	store         storage.Store
	rdb           *redis.Client
	venueClient   *venue.Client
	mappingsSvc   *mappings.Service
	session       *ingest.Session
	wsManager     *websocket.Manager
	queue         *backfill.Queue
	worker        *backfill.Worker
	publisher     *pubsub.RedisPublisher
	reconciler    *reconcile.Service
	settler       *settlement.Service
	cron          *cronrunner.Runner
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	DisableBackfill bool // For debugging: skip the backfill worker
}
