package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	"github.com/NordCoder/Stocker/internal/domain"
	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
	"github.com/NordCoder/Stocker/internal/domain/user"
)

type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// BootstrapAdmin creates the administrator account unless a user with that
// username already exists. It reports whether an account was created.
func (u *Usecase) BootstrapAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	username := strings.TrimSpace(seed.Username)
	if username == "" || seed.Password == "" {
		return false, fmt.Errorf("%w: admin username and password are required", ErrInvalidInput)
	}

	_, err := u.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	if perr := coreauth.CheckPasswordPolicy(seed.Password); perr != nil {
		u.log.Warn("bootstrap admin password is weak", zap.Error(perr))
	}
	hash, err := u.hasher.Hash(seed.Password)
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	admin := &user.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(seed.Email)),
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		Active:       true,
	}
	if err := u.users.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race with another instance.
			return false, nil
		}
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	u.security(ctx, zapcore.InfoLevel, domainauth.SecurityEvent{
		Type: domainauth.EventAdminBootstrap, UserID: admin.ID, Username: admin.Username,
	})
	return true, nil
}
