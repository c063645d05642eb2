package cache

// PriceCache is the interface for the per-process last-price cache.
type PriceCache interface {
	// Get retrieves the last price for a token.
	// Returns (price, true) if found, (0, false) if not found.
	Get(tokenID string) (float64, bool)

	// Set stores the last price for a token.
	Set(tokenID string, price float64) bool

	// Clear removes all values from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}
