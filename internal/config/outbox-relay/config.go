package outbox_relay_config

import (
	"time"

	"github.com/NordCoder/Stocker/internal/obs"
	outboxsvc "github.com/NordCoder/Stocker/internal/outbox"
	kafkainfra "github.com/NordCoder/Stocker/internal/repository/kafka"
	pginfra "github.com/NordCoder/Stocker/internal/repository/postgres"
)

type KafkaCfg struct {
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	EnsureTopic       bool          `mapstructure:"ensure_topic"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
}

func (k *KafkaCfg) AsProducerConfig() kafkainfra.ProducerConfig {
	return kafkainfra.ProducerConfig{
		Brokers:      k.Brokers,
		Topic:        k.Topic,
		WriteTimeout: k.WriteTimeout,
	}
}

func (k *KafkaCfg) AsTopicSpec() kafkainfra.TopicSpec {
	return kafkainfra.TopicSpec{
		Name:              k.Topic,
		NumPartitions:     k.Partitions,
		ReplicationFactor: k.ReplicationFactor,
		MaxWait:           30 * time.Second,
	}
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
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
	return obs.LogConfig{Level: lc.Level, Pretty: lc.Pretty, App: "stocker/outbox-relay"}
}

type Config struct {
	DB     pginfra.Config         `mapstructure:"db"`
	Kafka  KafkaCfg               `mapstructure:"kafka"`
	Outbox outboxsvc.RunnerConfig `mapstructure:"outbox"`
	Server Server                 `mapstructure:"server"`
	OTEL   OTEL                   `mapstructure:"otel"`
	Sentry obs.SentryConfig       `mapstructure:"sentry"`
	Log    Log                    `mapstructure:"log"`
}
