package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	// StatusFailed is terminal: the payload can never be delivered and the row
	// is kept for inspection.
	StatusFailed     Status = "FAILED"
)

type Kind int

const (
	KindSecurityEvent Kind = 1
)

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

type Repository interface {
	Enqueue(ctx context.Context, m Message) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error

	MarkFailed(ctx context.Context, keys []string) error
}

// Cleaner drops delivered messages once they are no longer useful for audit.
type Cleaner interface {
	DeleteDelivered(ctx context.Context, olderThan time.Time) (int64, error)
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
