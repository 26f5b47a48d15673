package kafka

import "context"

// SecurityEventPublisher ships an already-encoded security event to the broker.
type SecurityEventPublisher interface {
	PublishSecurityEvent(ctx context.Context, key string, data []byte) error
}
