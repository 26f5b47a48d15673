package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	"github.com/NordCoder/Stocker/internal/domain"
	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
)

// RefreshStore persists refresh tokens by their SHA-256 digest. Raw tokens
// never reach the repository.
type RefreshStore struct {
	repo domainauth.RefreshTokenRepo
	now  func() time.Time
}

func NewRefreshStore(repo domainauth.RefreshTokenRepo, now func() time.Time) *RefreshStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RefreshStore{repo: repo, now: now}
}

func (s *RefreshStore) Create(ctx context.Context, userID int64, raw string, expiresAt time.Time) (*domainauth.RefreshToken, error) {
	t := &domainauth.RefreshToken{
		UserID:    userID,
		TokenHash: coreauth.HashToken(raw),
		IssuedAt:  s.now(),
		ExpiresAt: expiresAt,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("store refresh: %w", err)
	}
	return t, nil
}

// FindByRaw returns the record in any state; domain.ErrNotFound when unknown.
func (s *RefreshStore) FindByRaw(ctx context.Context, raw string) (*domainauth.RefreshToken, error) {
	return s.repo.FindByHash(ctx, coreauth.HashToken(raw))
}

// IsValid reports whether the token exists, is not revoked and has not expired.
func (s *RefreshStore) IsValid(ctx context.Context, raw string) (bool, error) {
	t, err := s.FindByRaw(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !t.Revoked && !t.Expired(s.now()), nil
}

// Revoke marks raw revoked, linking it to replacement when one is given. It
// reports false if the token was unknown or already revoked.
func (s *RefreshStore) Revoke(ctx context.Context, raw, replacement string) (bool, error) {
	var replacedBy *string
	if replacement != "" {
		h := coreauth.HashToken(replacement)
		replacedBy = &h
	}
	ok, err := s.repo.Revoke(ctx, coreauth.HashToken(raw), replacedBy, s.now())
	if err != nil {
		return false, fmt.Errorf("revoke refresh: %w", err)
	}
	return ok, nil
}

func (s *RefreshStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh: %w", err)
	}
	return n, nil
}

// CleanupExpired deletes expired rows, plus revoked rows older than
// revokedRetention when it is positive.
func (s *RefreshStore) CleanupExpired(ctx context.Context, revokedRetention time.Duration) (int64, error) {
	now := s.now()
	var revokedBefore time.Time
	if revokedRetention > 0 {
		revokedBefore = now.Add(-revokedRetention)
	}
	n, err := s.repo.DeleteStale(ctx, now, revokedBefore)
	if err != nil {
		return 0, fmt.Errorf("cleanup refresh: %w", err)
	}
	return n, nil
}
