package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/janitor"
	"github.com/NordCoder/Stocker/internal/obs"
	pg "github.com/NordCoder/Stocker/internal/repository/postgres"
	authsvc "github.com/NordCoder/Stocker/internal/services/api/auth"
	"github.com/NordCoder/Stocker/internal/services/janitor"
	"github.com/NordCoder/Stocker/internal/services/janitor/repo"
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
	l.Info("starting janitor",
		zap.Duration("tick", cfg.Janitor.Tick),
		zap.Duration("revoked_retention", cfg.Janitor.RevokedRetention),
		zap.String("metrics_addr", cfg.Janitor.MetricsAddr),
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

	ms := obs.BootstrapMetricsServer(cfg.Janitor.MetricsAddr, db.Ping, l)

	uc := janitor.NewUC(
		janitor.Target{Name: "login_attempts", Sweeper: repo.Attempts{
			T: authsvc.NewThrottle(pg.NewLoginAttemptRepo(db), authsvc.ThrottleConfig{}),
		}},
		janitor.Target{Name: "refresh_tokens", Sweeper: repo.Tokens{
			S:         authsvc.NewRefreshStore(pg.NewRefreshTokenRepo(db), nil),
			Retention: cfg.Janitor.RevokedRetention,
		}},
		janitor.Target{Name: "outbox", Sweeper: repo.Outbox{
			C:         pg.NewOutboxRepo(db),
			Retention: cfg.Janitor.DeliveredRetention,
		}},
	)
	runner := janitor.New(l, uc, &cfg.Janitor)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("janitor started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
