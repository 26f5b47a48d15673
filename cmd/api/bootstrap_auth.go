package main

import (
	"context"

	"go.uber.org/zap"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	config "github.com/NordCoder/Stocker/internal/config/api"
	"github.com/NordCoder/Stocker/internal/outbox"
	authsvc "github.com/NordCoder/Stocker/internal/services/api/auth"
)

type authStack struct {
	uc       *authsvc.Usecase
	codec    *coreauth.TokenCodec
	throttle *authsvc.Throttle
	tokens   *authsvc.RefreshStore
}

func initAuth(cfg *config.Config, st *storage, logger *zap.Logger) (*authStack, error) {
	codec, err := coreauth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, nil)
	if err != nil {
		return nil, err
	}
	tokens := authsvc.NewRefreshStore(st.tokens, nil)
	throttle := authsvc.NewThrottle(st.attempts, cfg.Auth.AsThrottleConfig())
	uc := authsvc.NewUsecase(authsvc.Deps{
		Users:    st.users,
		Tokens:   tokens,
		Throttle: throttle,
		Codec:    codec,
		Hasher:   coreauth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Tx:       st.tx,
		Events:   outbox.NewSecurityEventRecorder(st.outbox),
		Logger:   logger,
	}, cfg.Auth.AsUsecaseConfig())
	return &authStack{uc: uc, codec: codec, throttle: throttle, tokens: tokens}, nil
}

func bootstrapAdmin(ctx context.Context, cfg *config.Config, uc *authsvc.Usecase, logger *zap.Logger) {
	if !cfg.Bootstrap.Enable {
		return
	}
	created, err := uc.BootstrapAdmin(ctx, cfg.Bootstrap.AsAdminSeed())
	if err != nil {
		logger.Error("bootstrap admin", zap.Error(err))
		return
	}
	if created {
		logger.Warn("default administrator created, change its password",
			zap.String("username", cfg.Bootstrap.AdminUsername))
	}
}
