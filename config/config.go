// Package config loads the settings of an optimistic cache deployment.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// OPTIMISTIC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	optimistic "github.com/krisalay/optimistic-cache"
	"github.com/krisalay/optimistic-cache/logging"
	"github.com/krisalay/optimistic-cache/metrics"
	"github.com/krisalay/optimistic-cache/types"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "OPTIMISTIC_"

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsBasic      = "basic"
	MetricsPrometheus = "prometheus"
	MetricsOTel       = "otel"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config describes one cache deployment.
type Config struct {
	Shards       int           `yaml:"shards" env:"SHARDS"`
	TempPrefix   string        `yaml:"temp_prefix" env:"TEMP_PREFIX"`
	StaleAfter   time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
	SettleBuffer int           `yaml:"settle_buffer" env:"SETTLE_BUFFER"`
	Metrics      string        `yaml:"metrics" env:"METRICS"`
	Log          Log           `yaml:"log" envPrefix:"LOG_"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Shards:       optimistic.DefaultShards,
		TempPrefix:   "temp-",
		SettleBuffer: 256,
		Metrics:      MetricsBasic,
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty; a missing file means defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Shards < 1 {
		return fmt.Errorf("%w: shards must be positive, got %d", ErrInvalid, c.Shards)
	}
	if c.StaleAfter < 0 {
		return fmt.Errorf("%w: stale_after must not be negative", ErrInvalid)
	}
	if c.SettleBuffer < 0 {
		return fmt.Errorf("%w: settle_buffer must not be negative", ErrInvalid)
	}
	switch c.Metrics {
	case MetricsNone, MetricsBasic, MetricsPrometheus, MetricsOTel:
	default:
		return fmt.Errorf("%w: unknown metrics backend %q", ErrInvalid, c.Metrics)
	}
	if _, err := c.Log.level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return lvl, err
	}
	return lvl, nil
}

// Logger builds the configured logger.
func (c Config) Logger() *logging.Logger {
	lvl, err := c.Log.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	if strings.EqualFold(c.Log.Format, "json") {
		return logging.NewJSONLogger(lvl)
	}
	return logging.NewTextLogger(lvl)
}

/*
NewMetrics builds the configured metrics sink.

Prometheus collectors are registered with reg; the OTel backend uses the global
meter provider. "none" returns types.NoopMetrics.
*/
func (c Config) NewMetrics(reg prometheus.Registerer) (types.Metrics, error) {
	switch c.Metrics {
	case MetricsPrometheus:
		return metrics.NewPrometheus(reg)
	case MetricsOTel:
		return metrics.NewOTel(otel.GetMeterProvider())
	case MetricsBasic:
		return &metrics.Basic{}, nil
	default:
		return types.NoopMetrics{}, nil
	}
}

// StoreOptions turns c into options for optimistic.NewStore.
func (c Config) StoreOptions(logger *logging.Logger, m types.Metrics) []optimistic.Option {
	opts := []optimistic.Option{
		optimistic.WithShards(c.Shards),
		optimistic.WithLogger(logger),
		optimistic.WithMetrics(m),
	}
	if c.StaleAfter > 0 {
		opts = append(opts, optimistic.WithStaleAfter(c.StaleAfter))
	}
	return opts
}
