package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/valuation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("ASSETFLOW_DATA_DIR", tmpDir)

	cfg, err := Load()
	require.NoError(t, err)

	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, domain.CurrencyBRL, cfg.ReportingCurrency)
	assert.InDelta(t, 5.80, cfg.FXFallbackUSD, 1e-9)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "0 */30 * * * *", cfg.RefreshSchedule)
	assert.Equal(t, 7, cfg.BackupRetentionDays)
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, valuation.DefaultThresholds(), cfg.Thresholds)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ASSETFLOW_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("REPORTING_CURRENCY", "usd")
	t.Setenv("FX_FALLBACK_USD", "6.1")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("S3_BUCKET", "backups")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("SCORE_ALLOCATION_UNDER", "45")
	t.Setenv("SCORE_RSI_OVERSOLD", "25.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, domain.CurrencyUSD, cfg.ReportingCurrency)
	assert.InDelta(t, 6.1, cfg.FXFallbackUSD, 1e-9)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Cache.RedisDB)
	assert.True(t, cfg.S3.Enabled())
	assert.Equal(t, 45, cfg.Thresholds.AllocationUnderBonus)
	assert.InDelta(t, 25.5, cfg.Thresholds.RSIOversold, 1e-9)
	assert.Equal(t, valuation.DefaultThresholds().BuyScore, cfg.Thresholds.BuyScore)
}

func TestLoad_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("ASSETFLOW_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("ASSETFLOW_DATA_DIR", t.TempDir())
	t.Setenv("SCORE_BUY_SCORE_TYPO", "x")
	t.Setenv("SCORE_LABEL_BUY", "sixty")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse scoring thresholds")
}

func validConfig() *Config {
	return &Config{
		Port:                8001,
		FXFallbackUSD:       5.8,
		RefreshSchedule:     "0 */30 * * * *",
		SnapshotSchedule:    "0 0 18 * * *",
		BackupSchedule:      "@daily",
		BackupRetentionDays: 7,
		Cache:               CacheConfig{Backend: CacheBackendMemory, TTL: time.Minute},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port zero", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "invalid cache backend"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache TTL"},
		{"bad fx fallback", func(c *Config) { c.FXFallbackUSD = 0 }, "FX fallback"},
		{"bad retention", func(c *Config) { c.BackupRetentionDays = 0 }, "backup retention"},
		{"bad schedule", func(c *Config) { c.RefreshSchedule = "every now and then" }, "REFRESH_SCHEDULE"},
		{"five field schedule", func(c *Config) { c.SnapshotSchedule = "0 18 * * *" }, "SNAPSHOT_SCHEDULE"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/assetflow"}

	assert.Equal(t, "/var/lib/assetflow/portfolio.db", cfg.DatabasePath("portfolio"))
	assert.Equal(t, "/var/lib/assetflow/backups", cfg.BackupDir())
}
