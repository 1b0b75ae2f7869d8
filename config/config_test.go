package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wavescope/errors"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "wavescope", cfg.NATS.Bucket)
	assert.Equal(t, time.Second, cfg.Engine.PollTimeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathSkipsFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavescope.yaml")
	content := `
nats:
  url: nats://store.internal:4222
  bucket: signals
engine:
  poll_timeout: 500ms
  channel_capacity: 16
metrics:
  enabled: false
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://store.internal:4222", cfg.NATS.URL)
	assert.Equal(t, "signals", cfg.NATS.Bucket)
	assert.Equal(t, "wavescope", cfg.NATS.StreamPrefix, "unset fields keep defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.PollTimeout)
	assert.Equal(t, 16, cfg.Engine.ChannelCapacity)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavescope.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nats:\n  bucket: from-file\n"), 0o600))

	t.Setenv("WAVESCOPE_NATS_BUCKET", "from-env")
	t.Setenv("WAVESCOPE_POLL_TIMEOUT", "2s")
	t.Setenv("WAVESCOPE_METRICS_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.NATS.Bucket)
	assert.Equal(t, 2*time.Second, cfg.Engine.PollTimeout)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestMalformedEnvValueIgnored(t *testing.T) {
	t.Setenv("WAVESCOPE_CHANNEL_CAPACITY", "lots")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Engine.ChannelCapacity, cfg.Engine.ChannelCapacity)
}

func TestMalformedYAMLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavescope.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nats: [broken"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateRejectsBadFields(t *testing.T) {
	cases := map[string]func(*Config){
		"empty url":          func(c *Config) { c.NATS.URL = "" },
		"empty bucket":       func(c *Config) { c.NATS.Bucket = "" },
		"empty prefix":       func(c *Config) { c.NATS.StreamPrefix = "" },
		"zero timeout":       func(c *Config) { c.NATS.Timeout = 0 },
		"zero poll":          func(c *Config) { c.Engine.PollTimeout = 0 },
		"negative budget":    func(c *Config) { c.Engine.BackpressureBudget = -time.Second },
		"zero capacity":      func(c *Config) { c.Engine.ChannelCapacity = 0 },
		"zero buffer":        func(c *Config) { c.Engine.MaxBufferedBatches = 0 },
		"metrics port":       func(c *Config) { c.Metrics.Port = 70000 },
		"empty metrics path": func(c *Config) { c.Metrics.Path = "" },
		"unknown log level":  func(c *Config) { c.Log.Level = "loud" },
		"unknown log format": func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		err := cfg.Validate()
		require.Error(t, err, name)
		assert.True(t, errors.IsInvalid(err), name)
	}
}

func TestMetricsFieldsSkippedWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = 0
	cfg.Metrics.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestSlogLevelMapping(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := LogConfig{Level: name}.SlogLevel()
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := LogConfig{Level: "verbose"}.SlogLevel()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
