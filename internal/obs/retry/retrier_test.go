package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	p := PublishPolicy("test", nil)
	p.Attempts = attempts
	p.Backoff = ExpoJitter{Base: time.Millisecond, Max: 2 * time.Millisecond}
	return p
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastPolicy(5))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStops(t *testing.T) {
	calls := 0
	boom := errors.New("bad payload")
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(boom)
	}, fastPolicy(5))
	require.ErrorIs(t, err, boom)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausts(t *testing.T) {
	calls := 0
	exhausted := false
	p := fastPolicy(3)
	p.OnExhaust = func(error) { exhausted = true }
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("down")
	}, p)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, exhausted)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy(10)
	p.Backoff = ExpoJitter{Base: time.Hour}
	err := Do(ctx, func() error {
		cancel()
		return errors.New("down")
	}, p)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpoJitter_Capped(t *testing.T) {
	b := ExpoJitter{Base: time.Second, Max: 4 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(1))
	assert.Equal(t, 4*time.Second, b.Next(5))
}
