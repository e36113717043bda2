package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/optimistic-cache/config"
	"github.com/krisalay/optimistic-cache/metrics"
	"github.com/krisalay/optimistic-cache/types"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadMissingFileMeansDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
shards: 4
stale_after: 30s
metrics: prometheus
log:
  level: debug
  format: json
`)
	t.Setenv("OPTIMISTIC_SHARDS", "8")
	t.Setenv("OPTIMISTIC_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Shards)
	assert.Equal(t, 30*time.Second, cfg.StaleAfter)
	assert.Equal(t, config.MetricsPrometheus, cfg.Metrics)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "temp-", cfg.TempPrefix)
	assert.True(t, cfg.Logger().Enabled(t.Context(), slog.LevelWarn))
	assert.False(t, cfg.Logger().Enabled(t.Context(), slog.LevelInfo))
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("OPTIMISTIC_STALE_AFTER", "soon")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeFile(t, "shards: [")
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero shards", func(c *config.Config) { c.Shards = 0 }},
		{"negative stale", func(c *config.Config) { c.StaleAfter = -time.Second }},
		{"negative buffer", func(c *config.Config) { c.SettleBuffer = -1 }},
		{"metrics backend", func(c *config.Config) { c.Metrics = "statsd" }},
		{"log level", func(c *config.Config) { c.Log.Level = "loud" }},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), config.ErrInvalid)
		})
	}
}

func TestNewMetrics(t *testing.T) {
	cfg := config.Default()

	m, err := cfg.NewMetrics(nil)
	require.NoError(t, err)
	assert.IsType(t, &metrics.Basic{}, m)

	cfg.Metrics = config.MetricsPrometheus
	m, err = cfg.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	assert.IsType(t, &metrics.Prometheus{}, m)

	cfg.Metrics = config.MetricsOTel
	m, err = cfg.NewMetrics(nil)
	require.NoError(t, err)
	assert.IsType(t, &metrics.OTel{}, m)

	cfg.Metrics = config.MetricsNone
	m, err = cfg.NewMetrics(nil)
	require.NoError(t, err)
	assert.Equal(t, types.NoopMetrics{}, m)
}

func TestStoreOptions(t *testing.T) {
	cfg := config.Default()
	cfg.StaleAfter = time.Minute

	opts := cfg.StoreOptions(cfg.Logger(), types.NoopMetrics{})
	assert.Len(t, opts, 4)
}
