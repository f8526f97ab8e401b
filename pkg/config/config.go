// Package config loads client configuration.
//
// Sources are applied in order, later ones overriding earlier ones:
//  1. Defaults
//  2. YAML file (optional)
//  3. Environment variables with the NUCLEARES_ prefix, e.g. NUCLEARES_PORT=8786
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/wehubfusion/nucleares/internal/httpconn"
	"github.com/wehubfusion/nucleares/internal/tracing"
	"github.com/wehubfusion/nucleares/pkg/concurrency"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "NUCLEARES_"

// Config is the flat client configuration.
type Config struct {
	// Host and Port locate the game's web server.
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// MaxConcurrent bounds simultaneous requests across the whole tree.
	// FailureThreshold consecutive failures open the circuit breaker for
	// ResetTimeout; 0 disables the breaker.
	MaxConcurrent    int           `koanf:"max_concurrent"`
	FailureThreshold int64         `koanf:"failure_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`

	// RefreshInterval is the sleep between automatic refresh cycles.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// AutoRefresh makes the client refresh once on construction and after an
	// endpoint change.
	AutoRefresh bool `koanf:"auto_refresh"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	TracingEnabled     bool    `koanf:"tracing_enabled"`
	TracingEndpoint    string  `koanf:"tracing_endpoint"`
	TracingSampleRatio float64 `koanf:"tracing_sample_ratio"`
	ServiceName        string  `koanf:"service_name"`
	ServiceVersion     string  `koanf:"service_version"`
	Environment        string  `koanf:"environment"`
}

// Default returns the built-in configuration.
func Default() Config {
	conn := httpconn.DefaultConnectionConfig()
	limits := concurrency.DefaultConfig()
	trace := tracing.DefaultConfig("nucleares")

	return Config{
		Host:               conn.Host,
		Port:               conn.Port,
		Timeout:            conn.Timeout,
		MaxConcurrent:      limits.MaxConcurrent,
		FailureThreshold:   limits.FailureThreshold,
		ResetTimeout:       limits.ResetTimeout,
		RefreshInterval:    time.Second,
		AutoRefresh:        false,
		LogLevel:           "info",
		LogFormat:          "json",
		TracingEnabled:     false,
		TracingEndpoint:    trace.OTLPEndpoint,
		TracingSampleRatio: trace.SampleRatio,
		ServiceName:        trace.ServiceName,
		ServiceVersion:     trace.ServiceVersion,
		Environment:        trace.Environment,
	}
}

// Load reads the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Default().toMap()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load file %s: %w", path, err)
		}
	}

	// NUCLEARES_MAX_CONCURRENT -> max_concurrent; keys are flat so underscores stay.
	envTransformer := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot work with.
func (c Config) Validate() error {
	var errs []error
	if err := c.Connection().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("max_concurrent must be greater than 0"))
	}
	if c.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("failure_threshold must not be negative"))
	}
	if c.ResetTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reset_timeout must be greater than 0"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be json or console", c.LogFormat))
	}
	if c.TracingEnabled {
		if err := c.Tracing().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Connection returns the web server connection settings.
func (c Config) Connection() *httpconn.ConnectionConfig {
	conn := httpconn.DefaultConnectionConfig()
	conn.Host = c.Host
	conn.Port = c.Port
	conn.Timeout = c.Timeout
	if c.MaxConcurrent > conn.MaxIdleConns {
		conn.MaxIdleConns = c.MaxConcurrent
	}
	return conn
}

// Concurrency returns the throttle settings.
func (c Config) Concurrency() concurrency.Config {
	return concurrency.Config{
		MaxConcurrent:    c.MaxConcurrent,
		FailureThreshold: c.FailureThreshold,
		ResetTimeout:     c.ResetTimeout,
	}
}

// Tracing returns the OpenTelemetry exporter settings.
func (c Config) Tracing() tracing.TracingConfig {
	cfg := tracing.DefaultConfig(c.ServiceName)
	cfg.ServiceVersion = c.ServiceVersion
	cfg.Environment = c.Environment
	cfg.OTLPEndpoint = c.TracingEndpoint
	cfg.SampleRatio = c.TracingSampleRatio
	return cfg
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"host":                 c.Host,
		"port":                 c.Port,
		"timeout":              c.Timeout.String(),
		"max_concurrent":       c.MaxConcurrent,
		"failure_threshold":    c.FailureThreshold,
		"reset_timeout":        c.ResetTimeout.String(),
		"refresh_interval":     c.RefreshInterval.String(),
		"auto_refresh":         c.AutoRefresh,
		"log_level":            c.LogLevel,
		"log_format":           c.LogFormat,
		"tracing_enabled":      c.TracingEnabled,
		"tracing_endpoint":     c.TracingEndpoint,
		"tracing_sample_ratio": c.TracingSampleRatio,
		"service_name":         c.ServiceName,
		"service_version":      c.ServiceVersion,
		"environment":          c.Environment,
	}
}

// mapProvider is a koanf provider backed by an in-memory map.
type mapProvider map[string]any

// ReadBytes is not supported; koanf uses Read for this provider.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: ReadBytes not supported by map provider")
}

// Read returns the configuration map.
func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
