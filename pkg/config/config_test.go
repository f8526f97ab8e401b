package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nucleares.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8785, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.RefreshInterval)
	assert.False(t, cfg.AutoRefresh)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
host: 192.168.1.20
port: 8786
timeout: 2s
refresh_interval: 500ms
auto_refresh: true
log_format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20", cfg.Host)
	assert.Equal(t, 8786, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.RefreshInterval)
	assert.True(t, cfg.AutoRefresh)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 10, cfg.MaxConcurrent, "unset keys keep their default")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: 8786\nmax_concurrent: 4\n")
	t.Setenv("NUCLEARES_PORT", "9000")
	t.Setenv("NUCLEARES_MAX_CONCURRENT", "6")
	t.Setenv("NUCLEARES_RESET_TIMEOUT", "1m")
	t.Setenv("NUCLEARES_ENVIRONMENT", "production")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 6, cfg.MaxConcurrent)
	assert.Equal(t, time.Minute, cfg.ResetTimeout)
	assert.Equal(t, "production", cfg.Tracing().Environment)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Host = "" }},
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }},
		{"negative failure threshold", func(c *Config) { c.FailureThreshold = -1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad sample ratio", func(c *Config) { c.TracingEnabled = true; c.TracingSampleRatio = 2 }},
		{"tracing without version", func(c *Config) { c.TracingEnabled = true; c.ServiceVersion = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())

	noBreaker := Default()
	noBreaker.FailureThreshold = 0
	assert.NoError(t, noBreaker.Validate(), "a zero failure threshold disables the breaker")
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Host = "10.0.0.5"
	cfg.MaxConcurrent = 32

	conn := cfg.Connection()
	assert.Equal(t, "http://10.0.0.5:8785/", conn.BaseURL().String())
	assert.Equal(t, 32, conn.MaxIdleConns)

	limits := cfg.Concurrency()
	assert.Equal(t, 32, limits.MaxConcurrent)
	assert.Equal(t, cfg.ResetTimeout, limits.ResetTimeout)

	cfg.ServiceVersion = "0.4.2"
	cfg.Environment = "steam-deck"
	trace := cfg.Tracing()
	assert.Equal(t, "nucleares", trace.ServiceName)
	assert.Equal(t, "0.4.2", trace.ServiceVersion)
	assert.Equal(t, "steam-deck", trace.Environment)
	assert.Equal(t, cfg.TracingEndpoint, trace.OTLPEndpoint)
	assert.NoError(t, trace.Validate())
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "console"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	cfg.LogLevel = "nope"
	_, err = NewLogger(cfg)
	assert.Error(t, err)
}
