package observability

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/smallbiznis/audiostore/internal/config"
)

// Config controls logs, traces and OTEL metrics. Unset identity fields fall
// back to the application config.
type Config struct {
	ServiceName string `env:"OTEL_SERVICE_NAME"`
	Environment string `env:"DEPLOYMENT_ENV"`
	Version     string `env:"SERVICE_VERSION"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OtelEnabled          bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterProtocol string  `env:"OTEL_EXPORTER_OTLP_PROTOCOL" envDefault:"grpc"`
	OtelTracesProtocol   string  `env:"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"`
	OtelSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`
}

func LoadConfig(app config.Config) (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	return cfg.withApp(app), nil
}

func (c Config) withApp(app config.Config) Config {
	c.ServiceName = firstNonEmpty(c.ServiceName, app.AppName, "audiostore")
	c.Environment = firstNonEmpty(c.Environment, app.Environment)
	c.Version = firstNonEmpty(c.Version, app.AppVersion)
	c.OtelExporterEndpoint = firstNonEmpty(c.OtelExporterEndpoint, app.OTLPEndpoint)
	c.OtelExporterProtocol = strings.ToLower(firstNonEmpty(c.OtelTracesProtocol, c.OtelExporterProtocol))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.OtelSamplingRatio < 0 || c.OtelSamplingRatio > 1 {
		c.OtelSamplingRatio = 0.1
	}
	return c
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
