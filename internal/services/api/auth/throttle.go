package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Stocker/internal/domain"
	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
)

const (
	DefaultMaxLoginAttempts = 10
	DefaultBlockDuration    = time.Minute
	attemptRetention        = 24 * time.Hour
)

type ThrottleConfig struct {
	MaxAttempts   int
	BlockDuration time.Duration
	Now           func() time.Time
}

// Throttle counts consecutive failed logins per identifier and blocks the
// identifier for BlockDuration once MaxAttempts is reached.
type Throttle struct {
	repo  domainauth.LoginAttemptRepo
	max   int
	block time.Duration
	now   func() time.Time
}

func NewThrottle(repo domainauth.LoginAttemptRepo, cfg ThrottleConfig) *Throttle {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxLoginAttempts
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = DefaultBlockDuration
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Throttle{repo: repo, max: cfg.MaxAttempts, block: cfg.BlockDuration, now: cfg.Now}
}

// Check returns the end of an active block, or nil. A block that has already
// ended is cleared on the way, resetting the counter to zero.
func (t *Throttle) Check(ctx context.Context, id string, kind domainauth.IdentifierKind) (*time.Time, error) {
	a, err := t.repo.Get(ctx, id, kind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("throttle get: %w", err)
	}
	if a.BlockedUntil == nil {
		return nil, nil
	}
	now := t.now()
	if a.BlockedAt(now) {
		until := *a.BlockedUntil
		return &until, nil
	}
	if err := t.repo.ClearExpiredBlock(ctx, id, kind, now); err != nil {
		return nil, fmt.Errorf("throttle clear: %w", err)
	}
	return nil, nil
}

func (t *Throttle) IsBlocked(ctx context.Context, id string, kind domainauth.IdentifierKind) (bool, error) {
	until, err := t.Check(ctx, id, kind)
	return until != nil, err
}

// RemainingBlock is the time left on an active block, zero when not blocked.
func (t *Throttle) RemainingBlock(ctx context.Context, id string, kind domainauth.IdentifierKind) (time.Duration, error) {
	a, err := t.repo.Get(ctx, id, kind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("throttle get: %w", err)
	}
	now := t.now()
	if !a.BlockedAt(now) {
		return 0, nil
	}
	return a.BlockedUntil.Sub(now), nil
}

// RemainingMinutes is RemainingBlock rounded up to whole minutes.
func (t *Throttle) RemainingMinutes(ctx context.Context, id string, kind domainauth.IdentifierKind) (int, error) {
	d, err := t.RemainingBlock(ctx, id, kind)
	if err != nil {
		return 0, err
	}
	return remainingMinutes(t.now().Add(d), t.now()), nil
}

func (t *Throttle) Attempts(ctx context.Context, id string, kind domainauth.IdentifierKind) (int, error) {
	a, err := t.repo.Get(ctx, id, kind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("throttle get: %w", err)
	}
	return a.Attempts, nil
}

// RecordFailedAttempt returns the updated record; callers inspect BlockedAt to
// learn whether this failure tripped the block.
func (t *Throttle) RecordFailedAttempt(ctx context.Context, id string, kind domainauth.IdentifierKind) (*domainauth.LoginAttempt, error) {
	now := t.now()
	a, err := t.repo.RecordFailure(ctx, id, kind, now, t.max, now.Add(t.block))
	if err != nil {
		return nil, fmt.Errorf("throttle record: %w", err)
	}
	return a, nil
}

func (t *Throttle) Reset(ctx context.Context, id string, kind domainauth.IdentifierKind) error {
	if err := t.repo.Delete(ctx, id, kind); err != nil {
		return fmt.Errorf("throttle reset: %w", err)
	}
	return nil
}

// Cleanup removes records idle for a day whose block is over.
func (t *Throttle) Cleanup(ctx context.Context) (int64, error) {
	now := t.now()
	n, err := t.repo.DeleteStale(ctx, now.Add(-attemptRetention), now)
	if err != nil {
		return 0, fmt.Errorf("throttle cleanup: %w", err)
	}
	return n, nil
}
