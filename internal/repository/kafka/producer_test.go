package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestSecurityEventsKafka_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{w: w, topic: "stocker.auth.security", log: zap.NewNop()}
	pub := NewSecurityEventsKafka(p)

	require.NoError(t, pub.PublishSecurityEvent(context.Background(), "key-1", []byte(`{"type":"logout"}`)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("key-1"), w.msgs[0].Key)
	assert.JSONEq(t, `{"type":"logout"}`, string(w.msgs[0].Value))

	var ct string
	for _, h := range w.msgs[0].Headers {
		if h.Key == "content-type" {
			ct = string(h.Value)
		}
	}
	assert.Equal(t, "application/json", ct)
}

func TestProducer_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{w: &fakeWriter{err: boom}, topic: "t", log: zap.NewNop()}
	err := p.Publish(context.Background(), []byte("k"), []byte("v"), "")
	require.ErrorIs(t, err, boom)
}
