package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Stocker/internal/domain"
	"github.com/NordCoder/Stocker/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct {
	mu     sync.Mutex
	nextID int64
	byHash map[string]*auth.RefreshToken
}

func NewRefreshTokenRepo() *RefreshTokenRepo {
	return &RefreshTokenRepo{byHash: make(map[string]*auth.RefreshToken)}
}

func (r *RefreshTokenRepo) Create(_ context.Context, t *auth.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[t.TokenHash]; ok {
		return domain.ErrConflict
	}
	r.nextID++
	t.ID = r.nextID
	cp := *t
	r.byHash[t.TokenHash] = &cp
	return nil
}

func (r *RefreshTokenRepo) FindByHash(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *RefreshTokenRepo) Revoke(_ context.Context, tokenHash string, replacedBy *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.RevokedAt = &at
	t.ReplacedBy = replacedBy
	return true, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(_ context.Context, userID int64, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.byHash {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepo) DeleteStale(_ context.Context, now, revokedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, t := range r.byHash {
		revokedStale := t.Revoked && t.RevokedAt != nil && t.RevokedAt.Before(revokedBefore)
		if t.ExpiresAt.Before(now) || revokedStale {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}
