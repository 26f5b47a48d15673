package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/api"
	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
	"github.com/NordCoder/Stocker/internal/domain/outbox"
	"github.com/NordCoder/Stocker/internal/domain/user"
	"github.com/NordCoder/Stocker/internal/obs"
	"github.com/NordCoder/Stocker/internal/repository/memory"
	pg "github.com/NordCoder/Stocker/internal/repository/postgres"
	authsvc "github.com/NordCoder/Stocker/internal/services/api/auth"
)

// storage is the set of repositories behind the selected driver.
type storage struct {
	users    user.Repo
	tokens   domainauth.RefreshTokenRepo
	attempts domainauth.LoginAttemptRepo
	outbox   outbox.Repository
	tx       authsvc.TxRunner
	health   obs.HealthFunc
	// inProcessOutbox is set when nothing outside this process drains the outbox.
	inProcessOutbox bool
	close           func()
}

func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("memory storage driver: state is lost on restart")
		now := func() time.Time { return time.Now().UTC() }
		return &storage{
			users:           memory.NewUserRepo(now),
			tokens:          memory.NewRefreshTokenRepo(),
			attempts:        memory.NewLoginAttemptRepo(),
			outbox:          memory.NewOutboxRepo(now),
			tx:              memory.Transactor{},
			inProcessOutbox: true,
			close:           func() {},
		}, nil
	}

	if cfg.DB.MigrateOnStart {
		if err := pg.Migrate(ctx, cfg.DB.DSN); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &storage{
		users:    pg.NewUserRepo(db),
		tokens:   pg.NewRefreshTokenRepo(db),
		attempts: pg.NewLoginAttemptRepo(db),
		outbox:   pg.NewOutboxRepo(db),
		tx:       pg.NewTransactor(db, logger),
		health:   db.Ping,
		close:    db.Close,
	}, nil
}
