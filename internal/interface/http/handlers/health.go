package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports service health for /health and /ready.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns an error if the dependency is unusable.
type HealthCheckFunc func(ctx context.Context) error

// Overall states reported in HealthStatus.Status.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// HealthStatus is the aggregated result. A failing critical check makes the
// service unhealthy and not ready; a failing optional check only degrades it.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type namedCheck struct {
	name     string
	critical bool
	check    HealthCheckFunc
}

// CompositeHealthChecker runs registered checks concurrently, each under its
// own timeout.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    []namedCheck
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewCompositeHealthChecker creates a checker with a 5s per-check timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

// SetTimeout sets the per-check timeout.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// AddCritical registers a check the service cannot run without.
func (c *CompositeHealthChecker) AddCritical(name string, check HealthCheckFunc) {
	c.add(namedCheck{name: name, critical: true, check: check})
}

// AddOptional registers a check whose failure only degrades the service.
func (c *CompositeHealthChecker) AddOptional(name string, check HealthCheckFunc) {
	c.add(namedCheck{name: name, check: check})
}

func (c *CompositeHealthChecker) add(p namedCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == p.name {
			c.checks[i] = p
			return
		}
	}
	c.checks = append(c.checks, p)
}

// Check runs every registered check.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := append([]namedCheck(nil), c.checks...)
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Status:    StatusOK,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, p := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := p.check(checkCtx)
			results[i] = CheckResult{
				Healthy:  err == nil,
				Critical: p.critical,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				results[i].Message = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, p := range checks {
		r := results[i]
		status.Checks[p.name] = r
		if r.Healthy {
			continue
		}
		failed = append(failed, p.name)
		if r.Critical {
			status.Healthy = false
			status.Ready = false
			status.Status = StatusDown
		} else if status.Status == StatusOK {
			status.Status = StatusDegraded
		}
	}

	if len(failed) == 0 {
		status.Message = "All checks passed"
	} else {
		sort.Strings(failed)
		status.Message = "Failing checks: " + strings.Join(failed, ", ")
	}
	return status
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDEFINED CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is satisfied by the Postgres connection and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingCheck wraps a Pinger.
func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// CircuitState reports whether an outbound circuit is open.
type CircuitState interface {
	IsOpen() bool
}

// NewCircuitCheck fails while the named circuit is open.
func NewCircuitCheck(name string, cb CircuitState) HealthCheckFunc {
	return func(context.Context) error {
		if cb.IsOpen() {
			return fmt.Errorf("%s circuit is open", name)
		}
		return nil
	}
}

// NoopHealthChecker always reports healthy.
type NoopHealthChecker struct {
	startTime time.Time
}

func NewNoopHealthChecker() *NoopHealthChecker {
	return &NoopHealthChecker{startTime: time.Now()}
}

func (n *NoopHealthChecker) Check(context.Context) HealthStatus {
	return HealthStatus{
		Healthy:   true,
		Ready:     true,
		Status:    StatusOK,
		Message:   "OK",
		Uptime:    time.Since(n.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}
