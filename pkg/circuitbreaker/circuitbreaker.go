// Package circuitbreaker guards an outbound dependency. After a run of
// consecutive failures the breaker opens and calls fail fast until a cool-down
// elapses; one trial call then decides whether it closes again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the protected function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before a trial call is let through.
	Cooldown time.Duration

	// OnStateChange is invoked under the breaker lock; keep it cheap.
	OnStateChange func(name string, from, to State)

	// IsFailure filters which errors count. Nil counts every non-nil error.
	IsFailure func(error) bool
}

// Option mutates Config.
type Option func(*Config)

func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// New creates a closed breaker. Defaults: 5 failures, 30s cool-down.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := Config{Name: name, FailureThreshold: 5, Cooldown: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// SMTPBreaker returns the breaker used in front of the outbound mail relay.
// While open, dispatch attempts fail immediately and are recorded as FAILED.
func SMTPBreaker(threshold int, cooldown time.Duration, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("smtp",
		WithFailureThreshold(threshold),
		WithCooldown(cooldown),
		WithOnStateChange(onStateChange),
		// a caller giving up is not a relay failure
		WithIsFailure(func(err error) bool { return !errors.Is(err, context.Canceled) }),
	)
}

// errPanicked is recorded when fn panics. The panic itself is re-raised.
var errPanicked = errors.New("circuitbreaker: call panicked")

// Execute runs fn unless the breaker is open. A panic in fn counts as a
// failure and is passed on to the caller.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	completed := false
	defer func() {
		if !completed {
			cb.record(errPanicked)
		}
	}()

	err := fn(ctx)
	completed = true
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.trial = true
		return nil
	case StateHalfOpen:
		if cb.trial {
			return ErrCircuitOpen
		}
		cb.trial = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil
	if failed && cb.cfg.IsFailure != nil {
		failed = cb.cfg.IsFailure(err)
	}

	if cb.state == StateHalfOpen {
		cb.trial = false
		if failed {
			cb.trip()
		} else {
			cb.failures = 0
			cb.transition(StateClosed)
		}
		return
	}

	if !failed {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.failures = 0
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// elapsed still reports open until the next call tries it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen reports whether calls are being rejected.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}
