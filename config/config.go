package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	// Exchange endpoints
	RESTBaseURL   string
	StreamBaseURL string
	SentimentURL  string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MetricsAddr   string

	// Streaming
	GroupSize    int // ticker streams per connection
	LowBandwidth bool

	// Scheduling
	Debounce  time.Duration
	BatchSize int

	// Backfill
	BackfillWorkers int

	// Memory management
	HistoryCeiling     int     // max instruments with history
	AccumulatorCeiling float64 // buy/sell rescale threshold

	// Persistence
	AutosaveInterval time.Duration
	StateMaxAge      time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first when
// present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env file")
	}

	return &Config{
		RESTBaseURL:   getEnv("BINANCE_REST_URL", ""),
		StreamBaseURL: getEnv("BINANCE_STREAM_URL", ""),
		SentimentURL:  getEnv("SENTIMENT_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		GroupSize:    getEnvInt("STREAM_GROUP_SIZE", 100),
		LowBandwidth: getEnvBool("LOW_BANDWIDTH", false),

		Debounce:  getEnvDuration("RECOMPUTE_DEBOUNCE", 100*time.Millisecond),
		BatchSize: getEnvInt("RECOMPUTE_BATCH_SIZE", 10),

		BackfillWorkers: getEnvInt("BACKFILL_WORKERS", 10),

		HistoryCeiling:     getEnvInt("HISTORY_CEILING", 600),
		AccumulatorCeiling: getEnvFloat("ACCUMULATOR_CEILING", 1e12),

		AutosaveInterval: getEnvDuration("AUTOSAVE_INTERVAL", 5*time.Minute),
		StateMaxAge:      getEnvDuration("STATE_MAX_AGE", 2*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
