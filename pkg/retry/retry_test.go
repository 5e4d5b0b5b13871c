package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

func noSleep(r *Retrier) *Retrier {
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	r := noSleep(New(Backoff{Attempts: 5, Initial: 10 * time.Millisecond, Max: time.Second},
		func(_ int, _ error, d time.Duration) { delays = append(delays, d) }))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errRefused
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
}

func TestRetrier_PermanentStopsImmediately(t *testing.T) {
	r := noSleep(New(Backoff{Attempts: 5}, nil))
	authErr := errors.New("password authentication failed")

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(authErr)
	})

	assert.Equal(t, authErr, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	r := noSleep(New(Backoff{Attempts: 3}, nil))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errRefused
	})

	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := noSleep(New(Backoff{Attempts: 10}, func(int, error, time.Duration) { cancel() }))

	calls := 0
	err := r.Do(ctx, func(context.Context) error {
		calls++
		return errRefused
	})

	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 500 * time.Millisecond, Max: 8 * time.Second}

	assert.Equal(t, 500*time.Millisecond, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(3))
	assert.Equal(t, 8*time.Second, b.Delay(6))

	b.Jitter = 0.2
	for i := 0; i < 20; i++ {
		d := b.Delay(2)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(errRefused)))
	assert.False(t, IsPermanent(errRefused))
}
