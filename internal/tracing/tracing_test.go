package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig("nucleares")
	assert.Equal(t, "nucleares", cfg.ServiceName)
	assert.Equal(t, "127.0.0.1:4318", cfg.OTLPEndpoint)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TracingConfig)
	}{
		{"empty service name", func(c *TracingConfig) { c.ServiceName = "" }},
		{"empty version", func(c *TracingConfig) { c.ServiceVersion = "" }},
		{"empty environment", func(c *TracingConfig) { c.Environment = "" }},
		{"empty endpoint", func(c *TracingConfig) { c.OTLPEndpoint = "" }},
		{"negative ratio", func(c *TracingConfig) { c.SampleRatio = -0.1 }},
		{"ratio above one", func(c *TracingConfig) { c.SampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("nucleares")
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSetupTracingRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig("")
	shutdown, err := SetupTracing(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, shutdown)
}

func TestShutdownTracing(t *testing.T) {
	assert.NoError(t, ShutdownTracing(nil, nil))

	core, logs := observer.New(zapcore.InfoLevel)
	failing := func(context.Context) error { return errors.New("collector unreachable") }

	err := ShutdownTracing(failing, zap.New(core))
	assert.EqualError(t, err, "collector unreachable")
	assert.Equal(t, 1, logs.FilterMessage("Failed to shutdown tracing").Len())
}
