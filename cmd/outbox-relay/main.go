package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/outbox-relay"
	"github.com/NordCoder/Stocker/internal/obs"
	"github.com/NordCoder/Stocker/internal/obs/retry"
	"github.com/NordCoder/Stocker/internal/outbox"
	kafkaRepo "github.com/NordCoder/Stocker/internal/repository/kafka"
	pg "github.com/NordCoder/Stocker/internal/repository/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("STOCKER_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting outbox-relay",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	flush, err := obs.InitSentry(cfg.Sentry)
	if err != nil {
		l.Warn("sentry init", zap.Error(err))
		flush = func() {}
	}
	defer flush()

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if cfg.Kafka.EnsureTopic {
		if err := kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.AsTopicSpec(), l); err != nil {
			l.Fatal("ensure topic", zap.Error(err))
		}
	}

	producer := kafkaRepo.NewProducer(cfg.Kafka.AsProducerConfig(), l)
	defer func() { _ = producer.Close() }()
	publisher := kafkaRepo.NewSecurityEventsKafka(producer)

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	dispatch := outbox.MakeGlobalOutboxHandler(publisher, retry.PublishPolicy("kafka", l))
	runner := outbox.NewOutboxRunner(l, pg.NewOutboxRepo(db), dispatch, cfg.Outbox)

	l.Info("outbox-relay started")
	runner.Run(ctx)

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
