package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Stocker/internal/domain/auth"
)

var _ auth.LoginAttemptRepo = (*LoginAttemptRepo)(nil)

type LoginAttemptRepo struct{ db *DB }

func NewLoginAttemptRepo(db *DB) *LoginAttemptRepo { return &LoginAttemptRepo{db: db} }

const (
	qLAGet = `
SELECT identifier, kind, attempts, last_attempt, blocked_until
FROM login_attempts
WHERE identifier = $1 AND kind = $2;`

	// Single statement: concurrent failures for the same identifier serialize
	// on the row lock taken by ON CONFLICT DO UPDATE.
	qLARecordFailure = `
INSERT INTO login_attempts (identifier, kind, attempts, last_attempt, blocked_until)
VALUES ($1, $2, 1, $3, CASE WHEN 1 >= $4 THEN $5::timestamptz END)
ON CONFLICT (identifier, kind) DO UPDATE
SET attempts      = login_attempts.attempts + 1,
    last_attempt  = EXCLUDED.last_attempt,
    blocked_until = CASE
        WHEN login_attempts.attempts + 1 >= $4 THEN $5::timestamptz
        ELSE login_attempts.blocked_until
    END
RETURNING identifier, kind, attempts, last_attempt, blocked_until;`

	qLAClearExpired = `
UPDATE login_attempts
SET attempts = 0, blocked_until = NULL
WHERE identifier = $1 AND kind = $2
  AND blocked_until IS NOT NULL AND blocked_until < $3;`

	qLADelete = `
DELETE FROM login_attempts
WHERE identifier = $1 AND kind = $2;`

	qLADeleteStale = `
DELETE FROM login_attempts
WHERE last_attempt < $1
  AND (blocked_until IS NULL OR blocked_until < $2);`
)

func (r *LoginAttemptRepo) Get(ctx context.Context, identifier string, kind auth.IdentifierKind) (*auth.LoginAttempt, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	a, err := scanAttempt(r.db.execQueryer(ctx).QueryRow(ctx, qLAGet, identifier, string(kind)))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("login attempt select: %w", err)
	}
	return a, nil
}

func (r *LoginAttemptRepo) RecordFailure(ctx context.Context, identifier string, kind auth.IdentifierKind,
	now time.Time, maxAttempts int, blockUntil time.Time) (*auth.LoginAttempt, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	a, err := scanAttempt(r.db.execQueryer(ctx).QueryRow(ctx, qLARecordFailure,
		identifier, string(kind), now, maxAttempts, blockUntil))
	if err != nil {
		return nil, fmt.Errorf("login attempt upsert: %w", err)
	}
	return a, nil
}

func (r *LoginAttemptRepo) ClearExpiredBlock(ctx context.Context, identifier string, kind auth.IdentifierKind, now time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qLAClearExpired, identifier, string(kind), now); err != nil {
		return fmt.Errorf("login attempt clear: %w", err)
	}
	return nil
}

func (r *LoginAttemptRepo) Delete(ctx context.Context, identifier string, kind auth.IdentifierKind) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qLADelete, identifier, string(kind)); err != nil {
		return fmt.Errorf("login attempt delete: %w", err)
	}
	return nil
}

func (r *LoginAttemptRepo) DeleteStale(ctx context.Context, inactiveBefore, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qLADeleteStale, inactiveBefore, now)
	if err != nil {
		return 0, fmt.Errorf("login attempt cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAttempt(row pgx.Row) (*auth.LoginAttempt, error) {
	var (
		a    auth.LoginAttempt
		kind string
	)
	if err := row.Scan(&a.Identifier, &kind, &a.Attempts, &a.LastAttempt, &a.BlockedUntil); err != nil {
		return nil, err
	}
	a.Kind = auth.IdentifierKind(kind)
	return &a, nil
}
