package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/api"
	"github.com/NordCoder/Stocker/internal/obs/retry"
	"github.com/NordCoder/Stocker/internal/outbox"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("STOCKER_CONFIG"))
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting api",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.String("storage", cfg.Storage.Driver),
	)

	flushSentry := initSentry(cfg, logger)
	defer flushSentry()

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	st, err := initStorage(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}
	defer st.close()

	as, err := initAuth(cfg, st, logger)
	if err != nil {
		logger.Fatal("auth init", zap.Error(err))
	}
	bootstrapAdmin(rootCtx, cfg, as.uc, logger)

	if st.inProcessOutbox {
		dispatch := outbox.MakeGlobalOutboxHandler(outbox.LogPublisher{Log: logger}, retry.PublishPolicy("log", logger))
		runner := outbox.NewOutboxRunner(logger, st.outbox, dispatch, cfg.Outbox)
		go runner.Run(rootCtx)

		jr := buildInProcessJanitor(cfg, as, logger)
		go func() { _ = jr.Run(rootCtx) }()
	}

	grpcServer, hs, grpcLn, err := buildGRPCServer(cfg)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	go watchHealth(rootCtx, hs, st.health, logger)

	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, logger) }()

	httpSrv := buildHTTPServer(cfg, logger, st, as)
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-grpcErrCh:
		if runErr != nil {
			logger.Error("grpc serve", zap.Error(runErr))
		}
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	grpcServer.GracefulStop()

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}
