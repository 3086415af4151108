// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Storage. Both are optional: without DATABASE_URL the ledger and
	// feature store run in-memory; without REDIS_ADDR the result cache
	// runs in-memory.
	DatabaseURL string
	RedisAddr   string

	// Eventing. Empty disables the Kafka publisher.
	KafkaBrokers string
	KafkaTopic   string

	// Tracing. Empty disables the OTLP exporter.
	OTLPEndpoint string

	// Scoring pipeline
	ModelPath         string        // optional JSON model file; built-in model if empty
	CacheTTL          time.Duration // result cache expiry
	StreamPace        time.Duration // delay between alert emissions (0 = consumer-paced)
	DependencyTimeout time.Duration // bound on feature store / ledger / cache calls
	BatchConcurrency  int
}

// Defaults.
const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultKafkaTopic        = "fraud-transactions"
	DefaultCacheTTLSeconds   = 3600
	DefaultDependencyTimeout = 2 * time.Second
	DefaultBatchConcurrency  = 8
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", DefaultKafkaTopic),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ModelPath:         os.Getenv("MODEL_PATH"),
		CacheTTL:          time.Duration(getEnvInt("CACHE_TTL_SECONDS", DefaultCacheTTLSeconds)) * time.Second,
		StreamPace:        time.Duration(getEnvInt("STREAM_PACE_MS", 0)) * time.Millisecond,
		DependencyTimeout: time.Duration(getEnvInt("DEPENDENCY_TIMEOUT_MS", int64(DefaultDependencyTimeout/time.Millisecond))) * time.Millisecond,
		BatchConcurrency:  int(getEnvInt("BATCH_CONCURRENCY", DefaultBatchConcurrency)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %s", c.CacheTTL)
	}
	if c.StreamPace < 0 {
		return fmt.Errorf("STREAM_PACE_MS must not be negative")
	}
	if c.DependencyTimeout <= 0 {
		return fmt.Errorf("DEPENDENCY_TIMEOUT_MS must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}
