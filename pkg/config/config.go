package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Venue endpoints
	VenueWSURL      string
	VenueHistoryURL string
	VenueGammaURL   string

	// Mapping refresh
	MappingRefreshInterval time.Duration

	// WebSocket
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Ingestion
	MaxSpread         float64 // widest bid/ask spread a mid price is computed from
	BucketWidth       time.Duration
	LastPriceCacheLen int64

	// Spike filter
	SpikeThreshold   float64
	SpikeConsistency float64
	SpikeMinCount    int

	// Backfill
	BackfillBusyPoll     time.Duration
	BackfillIdlePoll     time.Duration
	BackfillMaxAttempts  int
	BackfillFidelityMins int
	BackfillDefaultSpan  time.Duration
	HistoryResyncEvery   time.Duration

	// Reconciliation / settlement
	ReconcileInterval    time.Duration
	ResolutionInterval   time.Duration
	HedgePendingTimeout  time.Duration
	SettlementFeeRate    float64
	HeartbeatInterval    time.Duration
	HeartbeatTTL         time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Postgres
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Venue defaults
		VenueWSURL:      getEnvOrDefault("VENUE_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		VenueHistoryURL: getEnvOrDefault("VENUE_HISTORY_URL", "https://clob.polymarket.com"),
		VenueGammaURL:   getEnvOrDefault("VENUE_GAMMA_API_URL", "https://gamma-api.polymarket.com"),

		// Mapping refresh defaults
		MappingRefreshInterval: getDurationOrDefault("MAPPING_REFRESH_INTERVAL", 30*time.Second),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		// Ingestion defaults
		MaxSpread:         getFloat64OrDefault("INGEST_MAX_SPREAD", 0.30),
		BucketWidth:       getDurationOrDefault("INGEST_BUCKET_WIDTH", 5*time.Minute),
		LastPriceCacheLen: int64(getIntOrDefault("INGEST_LAST_PRICE_CACHE_LEN", 10000)),

		// Spike filter defaults
		SpikeThreshold:   getFloat64OrDefault("SPIKE_THRESHOLD", 0.25),
		SpikeConsistency: getFloat64OrDefault("SPIKE_CONSISTENCY_WINDOW", 0.05),
		SpikeMinCount:    getIntOrDefault("SPIKE_MIN_COUNT", 3),

		// Backfill defaults
		BackfillBusyPoll:     getDurationOrDefault("BACKFILL_BUSY_POLL", 100*time.Millisecond),
		BackfillIdlePoll:     getDurationOrDefault("BACKFILL_IDLE_POLL", 5*time.Second),
		BackfillMaxAttempts:  getIntOrDefault("BACKFILL_MAX_ATTEMPTS", 3),
		BackfillFidelityMins: getIntOrDefault("BACKFILL_FIDELITY_MINUTES", 60),
		BackfillDefaultSpan:  getDurationOrDefault("BACKFILL_DEFAULT_SPAN", 365*24*time.Hour),
		HistoryResyncEvery:   getDurationOrDefault("HISTORY_RESYNC_INTERVAL", 24*time.Hour),

		// Reconciliation / settlement defaults
		ReconcileInterval:   getDurationOrDefault("RECONCILE_INTERVAL", time.Minute),
		ResolutionInterval:  getDurationOrDefault("RESOLUTION_INTERVAL", 2*time.Minute),
		HedgePendingTimeout: getDurationOrDefault("HEDGE_PENDING_TIMEOUT", 2*time.Minute),
		SettlementFeeRate:   getFloat64OrDefault("SETTLEMENT_FEE_RATE", 0.02),
		HeartbeatInterval:   getDurationOrDefault("HEARTBEAT_INTERVAL", 5*time.Second),
		HeartbeatTTL:        getDurationOrDefault("HEARTBEAT_TTL", 15*time.Second),

		// Redis defaults
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntOrDefault("REDIS_DB", 0),

		// Postgres defaults
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "oddsengine"),
		PostgresPass: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "odds_engine"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.VenueWSURL == "" {
		return fmt.Errorf("VENUE_WS_URL cannot be empty")
	}

	if c.VenueHistoryURL == "" {
		return fmt.Errorf("VENUE_HISTORY_URL cannot be empty")
	}

	if c.VenueGammaURL == "" {
		return fmt.Errorf("VENUE_GAMMA_API_URL cannot be empty")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty")
	}

	if c.MaxSpread <= 0 || c.MaxSpread >= 1.0 {
		return fmt.Errorf("INGEST_MAX_SPREAD must be between 0 and 1.0, got %f", c.MaxSpread)
	}

	if c.SpikeThreshold <= 0 || c.SpikeThreshold >= 1.0 {
		return fmt.Errorf("SPIKE_THRESHOLD must be between 0 and 1.0, got %f", c.SpikeThreshold)
	}

	if c.SpikeMinCount < 1 {
		return fmt.Errorf("SPIKE_MIN_COUNT must be at least 1, got %d", c.SpikeMinCount)
	}

	if c.SettlementFeeRate < 0 || c.SettlementFeeRate >= 1.0 {
		return fmt.Errorf("SETTLEMENT_FEE_RATE must be in [0, 1.0), got %f", c.SettlementFeeRate)
	}

	if c.BackfillMaxAttempts < 1 {
		return fmt.Errorf("BACKFILL_MAX_ATTEMPTS must be at least 1, got %d", c.BackfillMaxAttempts)
	}

	if c.BucketWidth <= 0 {
		return fmt.Errorf("INGEST_BUCKET_WIDTH must be positive, got %s", c.BucketWidth)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
