// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPricingURL is the LiteLLM model price list.
const DefaultPricingURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// Cache file names inside CacheDir.
const (
	offsetsFileName      = "file_states.json"
	snapshotFileName     = "aggregation_snapshot.json"
	pricingCacheFileName = "ccmonitor_pricing_cache.json"
	logFileName          = "ccmonitor.log"
)

// Config holds the application configuration.
type Config struct {
	// ClaudePaths are the validated log roots, each containing a projects directory.
	ClaudePaths  []string
	CacheDir     string
	DatabasePath string
	LogLevel     string

	PricingURL             string
	PricingCacheMaxAge     time.Duration
	PricingRefreshInterval time.Duration

	SessionDuration time.Duration
	BurnRateWindow  time.Duration
	RefreshInterval time.Duration
	SaveInterval    time.Duration
	WatchLatency    time.Duration

	DailyBudget   float64
	MonthlyBudget float64
	BudgetAlerts  bool
}

// Default values
const (
	defaultPricingCacheMaxAge     = 24 * time.Hour
	defaultPricingRefreshInterval = 24 * time.Hour
	defaultSessionDuration        = 5 * time.Hour
	defaultBurnRateWindow         = 30 * time.Minute
	defaultRefreshInterval        = time.Second
	defaultSaveInterval           = 300 * time.Second
	defaultWatchLatency           = 500 * time.Millisecond
	defaultDailyBudget            = 10.0
	defaultMonthlyBudget          = 200.0
	defaultLogLevel               = "info"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		ClaudePaths:            ClaudePaths(),
		CacheDir:               getEnvString("CACHE_DIR", getDefaultCacheDir()),
		DatabasePath:           getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		LogLevel:               getEnvString("LOG_LEVEL", defaultLogLevel),
		PricingURL:             getEnvString("PRICING_URL", DefaultPricingURL),
		PricingCacheMaxAge:     getEnvDuration("PRICING_CACHE_MAX_AGE", defaultPricingCacheMaxAge),
		PricingRefreshInterval: getEnvDuration("PRICING_REFRESH_INTERVAL", defaultPricingRefreshInterval),
		SessionDuration:        getEnvDuration("SESSION_DURATION", defaultSessionDuration),
		BurnRateWindow:         getEnvDuration("BURN_RATE_WINDOW", defaultBurnRateWindow),
		RefreshInterval:        getEnvDuration("REFRESH_INTERVAL", defaultRefreshInterval),
		SaveInterval:           getEnvDuration("SAVE_INTERVAL", defaultSaveInterval),
		WatchLatency:           getEnvDuration("WATCH_LATENCY", defaultWatchLatency),
		DailyBudget:            getEnvFloat("DAILY_BUDGET", defaultDailyBudget),
		MonthlyBudget:          getEnvFloat("MONTHLY_BUDGET", defaultMonthlyBudget),
		BudgetAlerts:           getEnvBool("BUDGET_ALERTS", true),
	}

	// Ensure cache directory exists
	if err := ensureDir(cfg.CacheDir); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// OffsetsPath is where the reader persists per-file offsets.
func (c *Config) OffsetsPath() string { return filepath.Join(c.CacheDir, offsetsFileName) }

// SnapshotPath is where the aggregation snapshot lives.
func (c *Config) SnapshotPath() string { return filepath.Join(c.CacheDir, snapshotFileName) }

// PricingCachePath is where the last fetched pricing table is cached.
func (c *Config) PricingCachePath() string { return filepath.Join(c.CacheDir, pricingCacheFileName) }

// LogPath is the log file used while the TUI owns the terminal.
func (c *Config) LogPath() string { return filepath.Join(c.CacheDir, logFileName) }

// ProjectsDirs returns the projects directory of every configured log root.
func (c *Config) ProjectsDirs() []string {
	dirs := make([]string, 0, len(c.ClaudePaths))
	for _, root := range c.ClaudePaths {
		dirs = append(dirs, filepath.Join(root, projectsDirName))
	}
	return dirs
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "ccmonitor", ".env"),
			filepath.Join(home, ".ccmonitor", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
		grandparent := filepath.Dir(parent)
		paths = append(paths, filepath.Join(grandparent, ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "usage.db"
	}
	return filepath.Join(home, ".config", "ccmonitor", "usage.db")
}

// getDefaultCacheDir returns the per-user cache directory for offsets, snapshot and pricing.
func getDefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ccmonitor")
	}
	return filepath.Join(dir, "ccmonitor")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
