package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Bidding configuration
	IdempotencyTTL   time.Duration
	MaxAutoBidRounds int
	DefaultPageSize  int
	MaxPageSize      int

	// Sweeper configuration
	SweepInterval    time.Duration
	ViewFlushTimeout time.Duration

	// Relay configuration
	RelaySendBuffer int
	RelayWriteWait  time.Duration
	RelayPongWait   time.Duration

	// Rate limiting
	BidRateLimit  int
	BidRateWindow time.Duration

	// Upstream
	UpstreamTimeout time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Bidding
		IdempotencyTTL:   getEnvAsDuration("IDEMPOTENCY_TTL", "24h"),
		MaxAutoBidRounds: getEnvAsInt("MAX_AUTO_BID_ROUNDS", 100),
		DefaultPageSize:  getEnvAsInt("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:      getEnvAsInt("MAX_PAGE_SIZE", 100),

		// Sweeper
		SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", "15s"),
		ViewFlushTimeout: getEnvAsDuration("VIEW_FLUSH_TIMEOUT", "10s"),

		// Relay
		RelaySendBuffer: getEnvAsInt("RELAY_SEND_BUFFER", 256),
		RelayWriteWait:  getEnvAsDuration("RELAY_WRITE_WAIT", "10s"),
		RelayPongWait:   getEnvAsDuration("RELAY_PONG_WAIT", "60s"),

		// Rate limiting
		BidRateLimit:  getEnvAsInt("BID_RATE_LIMIT", 30),
		BidRateWindow: getEnvAsDuration("BID_RATE_WINDOW", "1m"),

		// Upstream
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", "10s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
