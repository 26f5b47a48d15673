package janitor_config

import (
	"time"

	"github.com/NordCoder/Stocker/internal/obs"
	pginfra "github.com/NordCoder/Stocker/internal/repository/postgres"
)

type JanitorCfg struct {
	Tick               time.Duration `mapstructure:"tick"`
	RevokedRetention   time.Duration `mapstructure:"revoked_retention"`
	DeliveredRetention time.Duration `mapstructure:"delivered_retention"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{Level: lc.Level, Pretty: lc.Pretty, App: "stocker/janitor"}
}

type Config struct {
	DB      pginfra.Config   `mapstructure:"db"`
	Janitor JanitorCfg       `mapstructure:"janitor"`
	OTEL    OTEL             `mapstructure:"otel"`
	Sentry  obs.SentryConfig `mapstructure:"sentry"`
	Log     Log              `mapstructure:"log"`
}
