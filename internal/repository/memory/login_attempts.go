package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Stocker/internal/domain"
	"github.com/NordCoder/Stocker/internal/domain/auth"
)

var _ auth.LoginAttemptRepo = (*LoginAttemptRepo)(nil)

type attemptKey struct {
	id   string
	kind auth.IdentifierKind
}

type LoginAttemptRepo struct {
	mu   sync.Mutex
	rows map[attemptKey]auth.LoginAttempt
}

func NewLoginAttemptRepo() *LoginAttemptRepo {
	return &LoginAttemptRepo{rows: make(map[attemptKey]auth.LoginAttempt)}
}

func (r *LoginAttemptRepo) Get(_ context.Context, identifier string, kind auth.IdentifierKind) (*auth.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[attemptKey{identifier, kind}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (r *LoginAttemptRepo) RecordFailure(_ context.Context, identifier string, kind auth.IdentifierKind,
	now time.Time, maxAttempts int, blockUntil time.Time) (*auth.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := attemptKey{identifier, kind}
	a, ok := r.rows[k]
	if !ok {
		a = auth.LoginAttempt{Identifier: identifier, Kind: kind}
	}
	a.Attempts++
	a.LastAttempt = now
	if a.Attempts >= maxAttempts {
		until := blockUntil
		a.BlockedUntil = &until
	}
	r.rows[k] = a
	return &a, nil
}

func (r *LoginAttemptRepo) ClearExpiredBlock(_ context.Context, identifier string, kind auth.IdentifierKind, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := attemptKey{identifier, kind}
	a, ok := r.rows[k]
	if !ok || a.BlockedUntil == nil || !a.BlockedUntil.Before(now) {
		return nil
	}
	a.Attempts = 0
	a.BlockedUntil = nil
	r.rows[k] = a
	return nil
}

func (r *LoginAttemptRepo) Delete(_ context.Context, identifier string, kind auth.IdentifierKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, attemptKey{identifier, kind})
	return nil
}

func (r *LoginAttemptRepo) DeleteStale(_ context.Context, inactiveBefore, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, a := range r.rows {
		if a.LastAttempt.Before(inactiveBefore) && (a.BlockedUntil == nil || a.BlockedUntil.Before(now)) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}
