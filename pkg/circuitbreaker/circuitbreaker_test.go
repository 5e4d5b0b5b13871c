package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRelay = errors.New("relay down")

func fail(context.Context) error { return errRelay }
func ok(context.Context) error   { return nil }

// fakeClock lets tests move past the cool-down without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, onChange func(string, State, State)) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	cb := SMTPBreaker(threshold, time.Minute, onChange)
	cb.now = clock.now
	return cb, clock
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errRelay)
	}
	assert.True(t, cb.IsOpen())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb, _ := newTestBreaker(2, nil)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, ok))
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_TrialCallClosesAfterCooldown(t *testing.T) {
	var transitions []string
	cb, clock := newTestBreaker(1, func(name string, from, to State) {
		assert.Equal(t, "smtp", name)
		transitions = append(transitions, from.String()+">"+to.String())
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	clock.advance(31 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreaker_FailedTrialCallReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, nil)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(2 * time.Minute)
	_ = cb.Execute(ctx, fail)

	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_PanicCountsAsFailure(t *testing.T) {
	cb, clock := newTestBreaker(1, nil)
	ctx := context.Background()
	boom := func(context.Context) error { panic("nil transport") }

	assert.PanicsWithValue(t, "nil transport", func() { _ = cb.Execute(ctx, boom) })
	assert.True(t, cb.IsOpen())

	clock.advance(2 * time.Minute)
	assert.Panics(t, func() { _ = cb.Execute(ctx, boom) })
	assert.Equal(t, StateOpen, cb.State(), "a panicking trial call reopens the breaker")

	clock.advance(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, ok), "the breaker must admit a new trial call after the cool-down")
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_CanceledCallerDoesNotTrip(t *testing.T) {
	cb, _ := newTestBreaker(1, nil)

	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), func(context.Context) error { return context.DeadlineExceeded })
	assert.True(t, cb.IsOpen())
}

func TestNew_Defaults(t *testing.T) {
	cb := New("relay")
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	assert.False(t, cb.IsOpen())
	_ = cb.Execute(ctx, fail)
	assert.True(t, cb.IsOpen())
}
