package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Stocker/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, FALSE)
RETURNING id;`

	qRTFindByHash = `
SELECT id, user_id, token_hash, issued_at, expires_at, revoked, revoked_at, replaced_by
FROM refresh_tokens
WHERE token_hash = $1;`

	qRTRevoke = `
UPDATE refresh_tokens
SET revoked = TRUE, revoked_at = $2, replaced_by = $3
WHERE token_hash = $1 AND revoked = FALSE;`

	qRTRevokeAllForUser = `
UPDATE refresh_tokens
SET revoked = TRUE, revoked_at = $2
WHERE user_id = $1 AND revoked = FALSE;`

	qRTDeleteStale = `
DELETE FROM refresh_tokens
WHERE expires_at < $1
   OR (revoked AND revoked_at < $2);`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qRTCreate, t.UserID, t.TokenHash, t.IssuedAt, t.ExpiresAt).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("refresh insert: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRTFindByHash, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.Revoked, &t.RevokedAt, &t.ReplacedBy); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string, replacedBy *string, at time.Time) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevoke, tokenHash, at, replacedBy)
	if err != nil {
		return false, fmt.Errorf("revoke refresh: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevokeAllForUser, userID, at)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepo) DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTDeleteStale, now, revokedBefore)
	if err != nil {
		return 0, fmt.Errorf("delete stale refresh: %w", err)
	}
	return tag.RowsAffected(), nil
}
