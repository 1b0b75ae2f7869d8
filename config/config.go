// Package config loads engine configuration from an optional YAML file with
// WAVESCOPE_* environment overrides on top. Precedence: defaults, then file,
// then environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/wavescope/errors"
)

// Config is the full engine configuration.
type Config struct {
	NATS    NATSConfig    `yaml:"nats"`
	Engine  EngineConfig  `yaml:"engine"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// NATSConfig holds store connection settings.
type NATSConfig struct {
	URL          string        `yaml:"url"`
	Bucket       string        `yaml:"bucket"`
	StreamPrefix string        `yaml:"stream_prefix"`
	Timeout      time.Duration `yaml:"timeout"`
}

// EngineConfig holds listener and plot tuning knobs.
type EngineConfig struct {
	PollTimeout        time.Duration `yaml:"poll_timeout"`
	BackpressureBudget time.Duration `yaml:"backpressure_budget"`
	ChannelCapacity    int           `yaml:"channel_capacity"`
	MaxBufferedBatches int           `yaml:"max_buffered_batches"`
	MaxRetainedSamples int           `yaml:"max_retained_samples"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		NATS: NATSConfig{
			URL:          "nats://127.0.0.1:4222",
			Bucket:       "wavescope",
			StreamPrefix: "wavescope",
			Timeout:      5 * time.Second,
		},
		Engine: EngineConfig{
			PollTimeout:        time.Second,
			BackpressureBudget: 250 * time.Millisecond,
			ChannelCapacity:    8,
			MaxBufferedBatches: 32,
			MaxRetainedSamples: 4096,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path when it exists, applies environment
// overrides, and validates the result. An empty path skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, errors.WrapInvalid(err, "config", "Load", "read file")
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.WrapInvalid(err, "config", "Load", "parse yaml")
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString("WAVESCOPE_NATS_URL", &c.NATS.URL)
	envString("WAVESCOPE_NATS_BUCKET", &c.NATS.Bucket)
	envString("WAVESCOPE_STREAM_PREFIX", &c.NATS.StreamPrefix)
	envDuration("WAVESCOPE_NATS_TIMEOUT", &c.NATS.Timeout)

	envDuration("WAVESCOPE_POLL_TIMEOUT", &c.Engine.PollTimeout)
	envDuration("WAVESCOPE_BACKPRESSURE_BUDGET", &c.Engine.BackpressureBudget)
	envInt("WAVESCOPE_CHANNEL_CAPACITY", &c.Engine.ChannelCapacity)
	envInt("WAVESCOPE_MAX_BUFFERED_BATCHES", &c.Engine.MaxBufferedBatches)
	envInt("WAVESCOPE_MAX_RETAINED_SAMPLES", &c.Engine.MaxRetainedSamples)

	envBool("WAVESCOPE_METRICS_ENABLED", &c.Metrics.Enabled)
	envInt("WAVESCOPE_METRICS_PORT", &c.Metrics.Port)
	envString("WAVESCOPE_METRICS_PATH", &c.Metrics.Path)

	envString("WAVESCOPE_LOG_LEVEL", &c.Log.Level)
	envString("WAVESCOPE_LOG_FORMAT", &c.Log.Format)
}

// Validate checks every field the loaders cannot reject on their own.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg),
			"config", "Validate", "field check")
	}

	if c.NATS.URL == "" {
		return invalid("nats url required")
	}
	if c.NATS.Bucket == "" {
		return invalid("nats bucket required")
	}
	if c.NATS.StreamPrefix == "" {
		return invalid("stream prefix required")
	}
	if c.NATS.Timeout <= 0 {
		return invalid("nats timeout must be positive")
	}
	if c.Engine.PollTimeout <= 0 {
		return invalid("poll timeout must be positive")
	}
	if c.Engine.BackpressureBudget < 0 {
		return invalid("backpressure budget cannot be negative")
	}
	if c.Engine.ChannelCapacity < 1 {
		return invalid("channel capacity must be at least 1")
	}
	if c.Engine.MaxBufferedBatches < 1 {
		return invalid("max buffered batches must be at least 1")
	}
	if c.Engine.MaxRetainedSamples < 0 {
		return invalid("max retained samples cannot be negative")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return invalid("metrics port out of range")
		}
		if c.Metrics.Path == "" {
			return invalid("metrics path required")
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log format must be text or json")
	}
	return nil
}

// SlogLevel maps the configured level name to a slog level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch l.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.WrapInvalid(
			fmt.Errorf("%w: unknown log level %q", errors.ErrInvalidConfig, l.Level),
			"config", "SlogLevel", "level lookup")
	}
}

// NewLogger builds the root logger from the log settings.
func (l LogConfig) NewLogger() *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := os.LookupEnv(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
