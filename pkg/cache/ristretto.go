package cache

import (
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a PriceCache implementation using Ristretto.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for the Ristretto cache.
type RistrettoConfig struct {
	MaxEntries int64 // Maximum number of tracked tokens
	Logger     *zap.Logger
}

// NewRistrettoCache creates a new Ristretto-backed price cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  cache,
		logger: cfg.Logger,
	}, nil
}

// Get retrieves the last price for a token.
func (r *RistrettoCache) Get(tokenID string) (float64, bool) {
	value, found := r.cache.Get(tokenID)
	if !found {
		CacheMissesTotal.Inc()
		return 0, false
	}

	price, ok := value.(float64)
	if !ok {
		CacheMissesTotal.Inc()
		return 0, false
	}

	CacheHitsTotal.Inc()
	return price, true
}

// Set stores the last price for a token. Cost is 1 per token.
func (r *RistrettoCache) Set(tokenID string, price float64) bool {
	success := r.cache.Set(tokenID, price, 1)
	if success {
		CacheSetsTotal.Inc()
	}
	return success
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("price-cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
}

// Metrics returns Ristretto's internal metrics.
func (r *RistrettoCache) Metrics() *ristretto.Metrics {
	return r.cache.Metrics
}

// Wait blocks until all pending writes have been applied.
// This is useful for testing or when you need to ensure a value is cached.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
