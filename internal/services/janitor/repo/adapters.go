package repo

import (
	"context"
	"time"

	"github.com/NordCoder/Stocker/internal/domain/outbox"
)

type Throttle interface {
	Cleanup(ctx context.Context) (int64, error)
}

type RefreshTokens interface {
	CleanupExpired(ctx context.Context, revokedRetention time.Duration) (int64, error)
}

type Attempts struct{ T Throttle }
type Tokens struct {
	S         RefreshTokens
	Retention time.Duration
}
type Outbox struct {
	C         outbox.Cleaner
	Retention time.Duration
	Now       func() time.Time
}

func (a Attempts) Sweep(ctx context.Context) (int64, error) {
	return a.T.Cleanup(ctx)
}

func (t Tokens) Sweep(ctx context.Context) (int64, error) {
	return t.S.CleanupExpired(ctx, t.Retention)
}

// Sweep is a no-op when there is no cleaner (the memory driver deletes on
// delivery).
func (o Outbox) Sweep(ctx context.Context) (int64, error) {
	if o.C == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	if o.Now != nil {
		now = o.Now()
	}
	return o.C.DeleteDelivered(ctx, now.Add(-o.Retention))
}
