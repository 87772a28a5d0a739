package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, 2592000, cfg.Cache.TTLSeconds)
	assert.Equal(t, "http://localhost:11434", cfg.Model.BaseURL)
	assert.Equal(t, "gemma3:1b", cfg.Model.ClassifyModel)
	assert.Equal(t, "gemma3:4b", cfg.Model.DossierModel)
	assert.InDelta(t, 0.1, cfg.Model.ClassifyTemperature, 0.001)
	assert.InDelta(t, 0.4, cfg.Model.DossierTemperature, 0.001)
	assert.Equal(t, 2000, cfg.Model.ContextLengthThreshold)
	assert.Equal(t, 2048, cfg.Model.ContextWindowShort)
	assert.Equal(t, 8192, cfg.Model.ContextWindowLong)
	assert.InDelta(t, 1.0, cfg.Scoring.WeightFit, 0.001)
	assert.InDelta(t, 10.0, cfg.Scoring.FundingBonus, 0.001)
	assert.Equal(t, 90, cfg.Scoring.FundingLookbackDays)
	assert.InDelta(t, 70.0, cfg.Scoring.DossierThreshold, 0.001)
	assert.Zero(t, cfg.Scoring.PrefilterThreshold)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrent)
	assert.True(t, cfg.Batch.Parallel)
	assert.True(t, cfg.Lifecycle.AutoParkEnabled)
	assert.Equal(t, 30, cfg.Lifecycle.AutoParkDays)
	assert.Equal(t, 24, cfg.Lifecycle.SweepIntervalHours)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
scoring:
  weight_pain: 1.5
  prefilter_threshold: 15
lifecycle:
  auto_park_days: 14
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.InDelta(t, 1.5, cfg.Scoring.WeightPain, 0.001)
	assert.InDelta(t, 15.0, cfg.Scoring.PrefilterThreshold, 0.001)
	assert.Equal(t, 14, cfg.Lifecycle.AutoParkDays)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// Unset keys keep their defaults.
	assert.Equal(t, "gemma3:1b", cfg.Model.ClassifyModel)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEADENGINE_STORE_DRIVER", "postgres")
	t.Setenv("LEADENGINE_SERVER_PORT", "9090")
	t.Setenv("LEADENGINE_CACHE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: ["), 0o644))

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
