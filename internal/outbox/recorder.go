package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
	"github.com/NordCoder/Stocker/internal/domain/outbox"
)

var _ domainauth.SecurityEventSink = (*SecurityEventRecorder)(nil)

// SecurityEventRecorder writes security events into the outbox. When ctx
// carries a transaction the insert joins it.
type SecurityEventRecorder struct {
	repo outbox.Repository
}

func NewSecurityEventRecorder(repo outbox.Repository) *SecurityEventRecorder {
	return &SecurityEventRecorder{repo: repo}
}

func (r *SecurityEventRecorder) Record(ctx context.Context, ev domainauth.SecurityEvent) error {
	if ev.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		ev.ID = id.String()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal security event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return r.repo.Enqueue(ctx, outbox.Message{
		IdempotencyKey: ev.ID,
		Kind:           outbox.KindSecurityEvent,
		Data:           data,
		Traceparent:    carrier.Get("traceparent"),
		Tracestate:     carrier.Get("tracestate"),
		Baggage:        carrier.Get("baggage"),
	})
}
