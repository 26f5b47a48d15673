package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/api"
	"github.com/NordCoder/Stocker/internal/obs"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.AsLoggerConfig())
}

func initSentry(cfg *config.Config, logger *zap.Logger) func() {
	sc := cfg.Sentry
	if sc.Release == "" {
		sc.Release = cfg.App.Version
	}
	flush, err := obs.InitSentry(sc)
	if err != nil {
		logger.Warn("sentry init, continuing without error reporting", zap.Error(err))
		return func() {}
	}
	return flush
}
