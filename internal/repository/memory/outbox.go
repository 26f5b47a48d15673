package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NordCoder/Stocker/internal/domain/outbox"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

// OutboxRepo keeps messages in insertion order. Delivered messages are
// dropped on MarkSuccess so the slice does not grow without bound.
type OutboxRepo struct {
	mu   sync.Mutex
	msgs []outbox.Message
	now  func() time.Time
}

func NewOutboxRepo(now func() time.Time) *OutboxRepo {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &OutboxRepo{now: now}
}

func (r *OutboxRepo) Enqueue(_ context.Context, m outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.msgs {
		if existing.IdempotencyKey == m.IdempotencyKey {
			return nil
		}
	}
	m.Status = outbox.StatusCreated
	m.CreatedAt = r.now()
	m.UpdatedAt = m.CreatedAt
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *OutboxRepo) PickBatch(_ context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var out []outbox.Message
	for i := range r.msgs {
		if len(out) == batch {
			break
		}
		m := &r.msgs[i]
		stale := m.Status == outbox.StatusInProgress && m.UpdatedAt.Before(now.Add(-inProgressTTL))
		if m.Status == outbox.StatusCreated || stale {
			m.Status = outbox.StatusInProgress
			m.UpdatedAt = now
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	done := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		done[k] = struct{}{}
	}
	kept := r.msgs[:0]
	for _, m := range r.msgs {
		if _, ok := done[m.IdempotencyKey]; !ok {
			kept = append(kept, m)
		}
	}
	r.msgs = kept
	return nil
}

// MarkFailed keeps the messages but takes them out of PickBatch for good.
func (r *OutboxRepo) MarkFailed(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dead := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		dead[k] = struct{}{}
	}
	now := r.now()
	for i := range r.msgs {
		if _, ok := dead[r.msgs[i].IdempotencyKey]; ok {
			r.msgs[i].Status = outbox.StatusFailed
			r.msgs[i].UpdatedAt = now
		}
	}
	return nil
}

func (r *OutboxRepo) Pending() []outbox.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.Message(nil), r.msgs...)
}
