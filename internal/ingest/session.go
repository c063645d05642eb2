// Package ingest owns the streaming hot path: it parses feed messages,
// gates garbage liquidity, keeps the in-process last-price cache fresh, and
// hands accepted ticks to the market state updater.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/oddsync/odds-engine/internal/mappings"
	"github.com/oddsync/odds-engine/internal/marketstate"
	"github.com/oddsync/odds-engine/internal/spike"
	"github.com/oddsync/odds-engine/pkg/cache"
	"github.com/oddsync/odds-engine/pkg/types"
	"go.uber.org/zap"
)

// Session bundles the per-process hot-path caches: the mapping index
// snapshot, the last-price cache, and the spike tracker. It exists so these
// are explicit state with refresh/invalidate methods rather than ambient
// globals.
type Session struct {
	mappings  *mappings.Service
	lastPrice *cache.RistrettoCache
	filter    *spike.Filter
	updater   *marketstate.Updater
	maxSpread float64
	logger    *zap.Logger
}

// Config holds session configuration.
type Config struct {
	Mappings     *mappings.Service
	Filter       *spike.Filter
	Updater      *marketstate.Updater
	MaxSpread    float64
	CacheEntries int64
	Logger       *zap.Logger
}

// NewSession creates a Session with its own last-price cache.
func NewSession(cfg Config) (*Session, error) {
	lastPrice, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		MaxEntries: cfg.CacheEntries,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create last-price cache: %w", err)
	}

	return &Session{
		mappings:  cfg.Mappings,
		lastPrice: lastPrice,
		filter:    cfg.Filter,
		updater:   cfg.Updater,
		maxSpread: cfg.MaxSpread,
		logger:    cfg.Logger,
	}, nil
}

// Run pumps feed messages from the channel until it closes or ctx is done.
func (s *Session) Run(ctx context.Context, messages <-chan *types.FeedMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage processes one feed message. Both accepted shapes funnel
// into per-token (token, price) ticks; everything else is dropped with a
// counter. Per-tick failures never propagate.
func (s *Session) HandleMessage(ctx context.Context, msg *types.FeedMessage) {
	switch msg.EventType {
	case types.EventTypeLastTradePrice:
		price, ok := types.ParsePrice(msg.Price)
		if !ok {
			TicksDroppedTotal.WithLabelValues("unparseable_price").Inc()
			return
		}
		s.applyTick(ctx, msg.AssetID, price, tickTime(msg))

	case types.EventTypePriceChange:
		ts := tickTime(msg)
		for i := range msg.PriceChanges {
			s.handlePriceChange(ctx, &msg.PriceChanges[i], ts)
		}

	default:
		s.logger.Debug("ignoring-feed-event",
			zap.String("event-type", msg.EventType))
	}
}

// handlePriceChange resolves one price-change entry to a price: a direct
// price wins; otherwise the bid/ask mid, but only when the spread is tight
// enough to be a pricing signal rather than garbage liquidity.
func (s *Session) handlePriceChange(ctx context.Context, change *types.PriceChange, ts time.Time) {
	if price, ok := types.ParsePrice(change.Price); ok {
		s.applyTick(ctx, change.AssetID, price, ts)
		return
	}

	bid, bidOK := types.ParsePrice(change.BestBid)
	ask, askOK := types.ParsePrice(change.BestAsk)
	if !bidOK || !askOK {
		TicksDroppedTotal.WithLabelValues("unparseable_price").Inc()
		return
	}

	if ask-bid > s.maxSpread {
		s.logger.Debug("wide-spread-discarded",
			zap.String("token-id", change.AssetID),
			zap.Float64("bid", bid),
			zap.Float64("ask", ask))
		TicksDroppedTotal.WithLabelValues("wide_spread").Inc()
		return
	}

	s.applyTick(ctx, change.AssetID, (bid+ask)/2, ts)
}

// applyTick updates the last-price cache and forwards the tick.
func (s *Session) applyTick(ctx context.Context, tokenID string, price float64, ts time.Time) {
	if tokenID == "" {
		TicksDroppedTotal.WithLabelValues("missing_token").Inc()
		return
	}

	// The cache is updated before any storage I/O: a lagging database must
	// not stale the in-memory view.
	s.lastPrice.Set(tokenID, price)

	am, ok := s.mappings.Current().Lookup(tokenID)
	if !ok {
		s.logger.Debug("tick-for-unknown-token", zap.String("token-id", tokenID))
		TicksDroppedTotal.WithLabelValues("unknown_token").Inc()
		return
	}

	TicksReceivedTotal.Inc()
	s.updater.Apply(ctx, tokenID, price, am, ts)
}

// LastPrice returns the most recent price seen for a token.
func (s *Session) LastPrice(tokenID string) (float64, bool) {
	return s.lastPrice.Get(tokenID)
}

// Invalidate drops the session's caches: pending spikes and last prices.
func (s *Session) Invalidate() {
	s.filter.Clear()
	s.lastPrice.Clear()
}

// Close releases the cache.
func (s *Session) Close() {
	s.lastPrice.Close()
}

// tickTime converts a feed timestamp (venue sends epoch milliseconds) to a
// time.Time, falling back to now when absent.
func tickTime(msg *types.FeedMessage) time.Time {
	if msg.Timestamp <= 0 {
		return time.Now().UTC()
	}
	if msg.Timestamp > 1e12 {
		return time.UnixMilli(msg.Timestamp).UTC()
	}
	return time.Unix(msg.Timestamp, 0).UTC()
}
