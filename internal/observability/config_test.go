package observability

import (
	"testing"

	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFallsBackToAppConfig(t *testing.T) {
	cfg, err := LoadConfig(config.Config{
		AppName:      "audiostore-api",
		Environment:  "production",
		AppVersion:   "1.2.3",
		OTLPEndpoint: "collector:4317",
	})
	require.NoError(t, err)

	assert.Equal(t, "audiostore-api", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("DEPLOYMENT_ENV", "staging")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "4")

	cfg, err := LoadConfig(config.Config{Environment: "production"})
	require.NoError(t, err)

	assert.Equal(t, "audiostore", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
	assert.True(t, cfg.Logger().IncludeStackOnError)
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "maybe")

	_, err := LoadConfig(config.Config{})
	assert.Error(t, err)
}
