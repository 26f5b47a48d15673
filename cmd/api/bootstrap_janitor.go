package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/api"
	"github.com/NordCoder/Stocker/internal/services/janitor"
	"github.com/NordCoder/Stocker/internal/services/janitor/repo"
)

// buildInProcessJanitor sweeps the memory driver, which cmd/janitor cannot
// reach. The outbox target is absent: delivered messages are dropped on
// MarkSuccess.
func buildInProcessJanitor(cfg *config.Config, as *authStack, logger *zap.Logger) *janitor.Runner {
	uc := janitor.NewUC(
		janitor.Target{Name: "login_attempts", Sweeper: repo.Attempts{T: as.throttle}},
		janitor.Target{Name: "refresh_tokens", Sweeper: repo.Tokens{S: as.tokens, Retention: cfg.Janitor.RevokedRetention}},
	)
	return janitor.New(logger.Named("janitor"), uc, &cfg.Janitor)
}
