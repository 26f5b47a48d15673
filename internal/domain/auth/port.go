package auth

import (
	"context"
	"time"
)

type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	// FindByHash returns the record regardless of its revoked or expired state.
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke flips revoked=false to true. It reports false when the row is
	// missing or already revoked, which lets callers detect a lost race.
	Revoke(ctx context.Context, tokenHash string, replacedBy *string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error)
	// DeleteStale removes rows expired before now and rows revoked before revokedBefore.
	DeleteStale(ctx context.Context, now, revokedBefore time.Time) (int64, error)
}

type LoginAttemptRepo interface {
	Get(ctx context.Context, identifier string, kind IdentifierKind) (*LoginAttempt, error)
	// RecordFailure increments the counter atomically and sets blocked_until
	// to blockUntil once the count reaches maxAttempts; below that the
	// existing blocked_until is left unchanged.
	RecordFailure(ctx context.Context, identifier string, kind IdentifierKind, now time.Time, maxAttempts int, blockUntil time.Time) (*LoginAttempt, error)
	// ClearExpiredBlock zeroes the counter and clears a block that ended before now.
	ClearExpiredBlock(ctx context.Context, identifier string, kind IdentifierKind, now time.Time) error
	Delete(ctx context.Context, identifier string, kind IdentifierKind) error
	// DeleteStale removes rows idle since before inactiveBefore whose block is over.
	DeleteStale(ctx context.Context, inactiveBefore, now time.Time) (int64, error)
}

type SecurityEventSink interface {
	Record(ctx context.Context, ev SecurityEvent) error
}
