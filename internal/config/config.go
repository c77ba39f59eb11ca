package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Engine
	BatchSize int

	// Background workers. BatchInterval = 0 disables the periodic trigger
	// (batches then run only via the HTTP endpoint, e.g. from an external cron).
	BatchInterval time.Duration
	SweepInterval time.Duration
	StaleAfter    time.Duration

	// Assignment notifications. An empty NotifySendURL disables them.
	NotifySendURL    string
	NotifyTimeout    time.Duration
	NotifyRatePerSec int
	AppBaseURL       string
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		BatchSize: getInt("BATCH_SIZE", 50),

		BatchInterval: getDuration("BATCH_INTERVAL", 30*time.Second),
		SweepInterval: getDuration("SWEEP_INTERVAL", 5*time.Minute),
		StaleAfter:    getDuration("STALE_AFTER", 15*time.Minute),

		NotifySendURL:    getEnv("NOTIFY_SEND_URL", ""),
		NotifyTimeout:    getDuration("NOTIFY_TIMEOUT", 10*time.Second),
		NotifyRatePerSec: getInt("NOTIFY_RATE_PER_SEC", 10),
		AppBaseURL:       getEnv("APP_BASE_URL", ""),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
