// Package retry retries startup connections to Postgres with exponential
// backoff and jitter. Outbound mail is never retried automatically: a FAILED
// email record is the signal for any later retry.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// PermanentError stops the retry loop on the first occurrence.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Backoff describes the delay schedule. Delay n is Initial*2^(n-1), capped at
// Max, with up to ±Jitter of it randomized.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Jitter   float64
}

// Delay returns the wait before attempt n+1.
func (b Backoff) Delay(n int) time.Duration {
	d := b.Initial
	for i := 1; i < n && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		d += time.Duration(float64(d) * b.Jitter * (rand.Float64()*2 - 1))
	}
	if d < 0 {
		return 0
	}
	return d
}

// Retrier runs an operation until it succeeds, returns a permanent error,
// runs out of attempts or the context ends.
type Retrier struct {
	backoff Backoff
	onRetry func(attempt int, err error, delay time.Duration)
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds a Retrier. onRetry may be nil.
func New(b Backoff, onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	if b.Attempts <= 0 {
		b.Attempts = 1
	}
	return &Retrier{backoff: b, onRetry: onRetry, sleep: sleepCtx}
}

// ConnectRetrier is the schedule used when connecting to backing stores at
// startup: five attempts from 500ms up to 8s.
func ConnectRetrier(onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(Backoff{
		Attempts: 5,
		Initial:  500 * time.Millisecond,
		Max:      8 * time.Second,
		Jitter:   0.2,
	}, onRetry)
}

// Do calls op until it succeeds. The returned error is the last one op
// produced, unwrapped from PermanentError.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		last = op(ctx)
		if last == nil {
			return nil
		}
		var p *PermanentError
		if errors.As(last, &p) {
			return p.Err
		}
		if attempt >= r.backoff.Attempts {
			return last
		}

		delay := r.backoff.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, last, delay)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return last
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
