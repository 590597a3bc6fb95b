// Package config loads the process configuration from environment variables,
// with defaults suitable for local development.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration of the store server.
type Config struct {
	ServiceName string
	HTTPAddr    string

	// DBPath is the store database; AuditDBPath is the placement audit log.
	DBPath      string
	AuditDBPath string

	// RedisAddr enables the report cache when non-empty.
	RedisAddr string

	// AMQPURL enables the sale-history mirror when non-empty.
	AMQPURL string

	// LockWait bounds the wait for a contended product lock.
	LockWait time.Duration

	// PlaceAttempts bounds transparent retries of concurrency conflicts.
	PlaceAttempts int

	// Projection worker tuning.
	ProjectionBuffer   int
	ProjectionAttempts int
	ProjectionBackoff  time.Duration

	// Reconciliation sweep tuning.
	SweepInterval time.Duration
	SweepBatch    int
	SweepWorkers  int

	// ReportCacheTTL bounds report-answer staleness.
	ReportCacheTTL time.Duration
}

// Load reads the environment once at startup.
func Load() *Config {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "store-server"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),

		DBPath:      getEnv("DB_PATH", "./data/store.db"),
		AuditDBPath: getEnv("AUDIT_DB_PATH", "./data/placements.db"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		AMQPURL:   os.Getenv("AMQP_URL"),

		LockWait:      getDuration("LOCK_WAIT", 5*time.Second),
		PlaceAttempts: getInt("PLACE_ATTEMPTS", 3),

		ProjectionBuffer:   getInt("PROJECTION_BUFFER", 256),
		ProjectionAttempts: getInt("PROJECTION_ATTEMPTS", 3),
		ProjectionBackoff:  getDuration("PROJECTION_BACKOFF", 50*time.Millisecond),

		SweepInterval: getDuration("SWEEP_INTERVAL", 30*time.Second),
		SweepBatch:    getInt("SWEEP_BATCH", 100),
		SweepWorkers:  getInt("SWEEP_WORKERS", 4),

		ReportCacheTTL: getDuration("REPORT_CACHE_TTL", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
