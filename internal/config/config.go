// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/valuation"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	ReportingCurrency domain.Currency
	FXFallbackUSD     float64

	RefreshSchedule     string
	SnapshotSchedule    string
	BackupSchedule      string
	BackupRetentionDays int

	Cache CacheConfig
	S3    S3Config

	YahooBaseURL        string
	ExchangeRateBaseURL string

	Thresholds valuation.Thresholds
}

// CacheConfig selects and configures the market snapshot cache
type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// S3Config holds the optional remote backup target (AWS S3 or any S3-compatible store)
type S3Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether remote backups are configured
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ASSETFLOW_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	thresholds, err := loadThresholds()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ReportingCurrency: domain.NormalizeCurrency(getEnv("REPORTING_CURRENCY", string(domain.CurrencyBRL))),
		FXFallbackUSD:     getEnvAsFloat("FX_FALLBACK_USD", 5.80),

		RefreshSchedule:     getEnv("REFRESH_SCHEDULE", "0 */30 * * * *"),
		SnapshotSchedule:    getEnv("SNAPSHOT_SCHEDULE", "0 0 18 * * *"),
		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 7),

		Cache: CacheConfig{
			Backend:       strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			TTL:           getEnvAsDuration("CACHE_TTL", 10*time.Minute),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},

		YahooBaseURL:        getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		ExchangeRateBaseURL: getEnv("EXCHANGERATE_BASE_URL", "https://api.exchangerate-api.com"),

		Thresholds: thresholds,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadThresholds parses every scoring constant, falling back to the envDefault tags
func loadThresholds() (valuation.Thresholds, error) {
	var th valuation.Thresholds
	if err := env.ParseWithOptions(&th, env.Options{Environment: env.ToMap(os.Environ())}); err != nil {
		return valuation.Thresholds{}, fmt.Errorf("failed to parse scoring thresholds: %w", err)
	}
	return th, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid cache backend %q (expected %s or %s)", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}

	if c.FXFallbackUSD <= 0 {
		return fmt.Errorf("FX fallback rate must be positive, got %v", c.FXFallbackUSD)
	}

	if c.BackupRetentionDays < 1 {
		return fmt.Errorf("backup retention must be at least 1 day, got %d", c.BackupRetentionDays)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"REFRESH_SCHEDULE":  c.RefreshSchedule,
		"SNAPSHOT_SCHEDULE": c.SnapshotSchedule,
		"BACKUP_SCHEDULE":   c.BackupSchedule,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	return nil
}

// DatabasePath returns the absolute path of a named database file
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// BackupDir returns the local backup directory
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
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
