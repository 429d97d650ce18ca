// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ScreenerDefaults holds the default screener query parameters.
// These are runtime defaults, not correctness-relevant constants: every
// HTTP request may override them via query parameters.
type ScreenerDefaults struct {
	Exchanges              []string // Canonical priority order for deduplication
	Country                string
	MinMarketCap           float64
	MinVolume              int64
	Limit                  int
	IncludeAllShareClasses bool
}

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the cache database (always absolute)
	FMPAPIKey string
	Password  string // Optional API password gate; empty disables the gate
	LogLevel  string
	Port      int
	DevMode   bool

	// Pipeline tuning
	EnrichStrategy   string // "per_symbol" or "bulk"
	ScreenerWorkers  int    // Upper bound; effective width is min(this, exchanges)
	EnrichWorkers    int
	ThrottleEvery    int           // Sleep after every N symbol lookups (0 disables)
	ThrottleDelay    time.Duration
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	RequestTimeout   time.Duration
	ScreenerCacheTTL time.Duration
	RefreshSchedule  string // cron spec for the background cache refresh ("" disables)

	Screener ScreenerDefaults
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SCREENER_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		FMPAPIKey: getEnv("FMP_API_KEY", ""),
		Password:  getEnv("SCREENER_PASSWORD", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Port:      getEnvAsInt("PORT", 8090),
		DevMode:   getEnvAsBool("DEV_MODE", false),

		EnrichStrategy:   getEnv("ENRICH_STRATEGY", "per_symbol"),
		ScreenerWorkers:  getEnvAsInt("SCREENER_WORKERS", 4),
		EnrichWorkers:    getEnvAsInt("ENRICH_WORKERS", 8),
		ThrottleEvery:    getEnvAsInt("THROTTLE_EVERY", 50),
		ThrottleDelay:    getEnvAsDuration("THROTTLE_DELAY", 1*time.Second),
		RetryAttempts:    getEnvAsInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		RequestTimeout:   getEnvAsDuration("REQUEST_TIMEOUT", 20*time.Second),
		ScreenerCacheTTL: getEnvAsDuration("SCREENER_CACHE_TTL", 15*time.Minute),
		RefreshSchedule:  getEnv("REFRESH_SCHEDULE", ""),

		Screener: ScreenerDefaults{
			Exchanges:              getEnvAsList("SCREENER_EXCHANGES", []string{"NYSE", "NASDAQ", "AMEX"}),
			Country:                getEnv("SCREENER_COUNTRY", "US"),
			MinMarketCap:           getEnvAsFloat("SCREENER_MIN_MARKET_CAP", 2_000_000_000),
			MinVolume:              int64(getEnvAsInt("SCREENER_MIN_VOLUME", 500_000)),
			Limit:                  getEnvAsInt("SCREENER_LIMIT", 1000),
			IncludeAllShareClasses: getEnvAsBool("SCREENER_ALL_SHARE_CLASSES", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.FMPAPIKey == "" {
		return fmt.Errorf("FMP_API_KEY is required")
	}
	if c.EnrichStrategy != "per_symbol" && c.EnrichStrategy != "bulk" {
		return fmt.Errorf("invalid ENRICH_STRATEGY %q (must be per_symbol or bulk)", c.EnrichStrategy)
	}
	if len(c.Screener.Exchanges) == 0 {
		return fmt.Errorf("SCREENER_EXCHANGES must name at least one exchange")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
