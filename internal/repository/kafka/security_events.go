package kafka

import (
	"context"

	"github.com/NordCoder/Stocker/internal/domain/kafka"
)

const jsonContentType = "application/json"

type SecurityEventsKafka struct {
	p *Producer
}

func NewSecurityEventsKafka(p *Producer) *SecurityEventsKafka { return &SecurityEventsKafka{p: p} }

var _ kafka.SecurityEventPublisher = (*SecurityEventsKafka)(nil)

func (e *SecurityEventsKafka) PublishSecurityEvent(ctx context.Context, key string, data []byte) error {
	return e.p.Publish(ctx, []byte(key), data, jsonContentType)
}
