// Package pubsub broadcasts canonical update payloads over Redis channels
// and writes the liveness heartbeat key. Both are best-effort: callers
// log failures and move on.
package pubsub

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oddsync/odds-engine/internal/marketstate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel names. Consumers either watch the broad channel or a single
// event's targeted channel.
const (
	ChannelUpdates     = "odds:updates"
	ChannelEventPrefix = "odds:updates:"
	HeartbeatKey       = "odds-engine:heartbeat"
)

// publisher is the subset of redis commands this package uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisPublisher publishes updates on Redis pub/sub.
type RedisPublisher struct {
	rdb    publisher
	logger *zap.Logger
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(rdb publisher, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:    rdb,
		logger: logger,
	}
}

// PublishUpdate publishes one canonical update on the broad channel and
// the event's targeted channel.
func (p *RedisPublisher) PublishUpdate(ctx context.Context, update *marketstate.Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	err = p.rdb.Publish(ctx, ChannelUpdates, payload).Err()
	if err != nil {
		return fmt.Errorf("publish broad update: %w", err)
	}

	err = p.rdb.Publish(ctx, ChannelEventPrefix+update.EventID, payload).Err()
	if err != nil {
		return fmt.Errorf("publish targeted update: %w", err)
	}

	UpdatesPublishedTotal.Inc()

	return nil
}

// Heartbeat writes the liveness key with a short TTL on a fixed interval
// until ctx is done. External monitoring alerts on key expiry.
func (p *RedisPublisher) Heartbeat(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := p.rdb.Set(ctx, HeartbeatKey, time.Now().UTC().Format(time.RFC3339), ttl).Err()
			if err != nil {
				p.logger.Warn("heartbeat-write-failed", zap.Error(err))
				HeartbeatFailuresTotal.Inc()
			}
		}
	}
}
