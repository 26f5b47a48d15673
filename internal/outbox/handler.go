package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Stocker/internal/domain/auth"
	"github.com/NordCoder/Stocker/internal/domain/kafka"
	"github.com/NordCoder/Stocker/internal/domain/outbox"
	"github.com/NordCoder/Stocker/internal/obs"
	"github.com/NordCoder/Stocker/internal/obs/retry"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle "+kind)
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

func MakeGlobalOutboxHandler(pub kafka.SecurityEventPublisher, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindSecurityEvent:
			base := func(ctx context.Context, data []byte) error {
				var ev domainauth.SecurityEvent
				if err := json.Unmarshal(data, &ev); err != nil {
					return retry.Permanent(fmt.Errorf("unmarshal security event: %w", err))
				}
				return pub.PublishSecurityEvent(ctx, ev.ID, data)
			}
			return instrument("security_event", base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}

// LogPublisher stands in for the broker when the API runs on the memory
// driver: events end up in the security log only.
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) PublishSecurityEvent(ctx context.Context, key string, data []byte) error {
	obs.Security(obs.WithTrace(ctx, p.Log)).Debug("security event drained",
		zap.String("key", key), zap.ByteString("event", data))
	return nil
}
