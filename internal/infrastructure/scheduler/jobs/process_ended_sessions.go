// Package jobs contains the engagement agent's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/engagement-agent/internal/application/command"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS ENDED SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SessionProcessor runs the batch pipeline for one class session.
type SessionProcessor interface {
	Handle(ctx context.Context, cmd command.ProcessSessionEngagementCommand) (*command.ProcessSessionResult, error)
}

// ProcessEndedSessionsConfig contains configuration for the sweep.
type ProcessEndedSessionsConfig struct {
	// Window is how far back the first sweep looks.
	Window time.Duration

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultProcessEndedSessionsConfig returns sensible defaults.
func DefaultProcessEndedSessionsConfig() ProcessEndedSessionsConfig {
	return ProcessEndedSessionsConfig{
		Window:  15 * time.Minute,
		Timeout: 10 * time.Minute,
	}
}

// SweepStats contains statistics from one sweep.
type SweepStats struct {
	From              time.Time
	To                time.Time
	SessionsFound     int
	SessionsSkipped   int
	SessionsProcessed int
	StudentsProcessed int
	StudentsFailed    int
}

// ProcessEndedSessionsJob runs the batch pipeline for every class session
// that ended since the previous successful sweep. The watermark only moves
// forward when every session in the window was handled. Until then the
// sessions that did succeed are remembered and skipped, so the next run only
// retries the failed ones.
type ProcessEndedSessionsJob struct {
	sessions  student.SessionRepository
	processor SessionProcessor
	config    ProcessEndedSessionsConfig
	log       *logger.Logger
	now       func() time.Time

	mu        sync.Mutex
	watermark time.Time
	done      map[string]struct{}
	lastStats SweepStats
}

// NewProcessEndedSessionsJob creates the sweep job.
func NewProcessEndedSessionsJob(
	sessions student.SessionRepository,
	processor SessionProcessor,
	config ProcessEndedSessionsConfig,
	log *logger.Logger,
) *ProcessEndedSessionsJob {
	if config.Window <= 0 {
		config.Window = DefaultProcessEndedSessionsConfig().Window
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultProcessEndedSessionsConfig().Timeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessEndedSessionsJob{
		sessions:  sessions,
		processor: processor,
		config:    config,
		log:       log.With(logger.Component("sweep")),
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(map[string]struct{}),
	}
}

// WithClock overrides the time source.
func (j *ProcessEndedSessionsJob) WithClock(now func() time.Time) *ProcessEndedSessionsJob {
	j.now = now
	return j
}

// Name returns the job name.
func (j *ProcessEndedSessionsJob) Name() string { return "process_ended_sessions" }

// Description returns a human-readable description of the job.
func (j *ProcessEndedSessionsJob) Description() string {
	return "Runs the engagement pipeline for class sessions that ended since the last sweep"
}

// Run executes one sweep. Concurrent calls are serialised.
func (j *ProcessEndedSessionsJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	to := j.now()
	from := j.watermark
	if from.IsZero() {
		from = to.Add(-j.config.Window)
	}
	stats := SweepStats{From: from, To: to}

	ended, err := j.sessions.ListEndedBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("sweep: list ended sessions: %w", err)
	}
	stats.SessionsFound = len(ended)

	var errs []error
	for _, cs := range ended {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if _, ok := j.done[cs.ID]; ok {
			stats.SessionsSkipped++
			continue
		}

		res, err := j.processor.Handle(ctx, command.ProcessSessionEngagementCommand{SessionID: cs.ID})
		if err != nil {
			j.log.Error("session sweep failed", logger.SessionID(cs.ID), logger.Err(err))
			errs = append(errs, fmt.Errorf("session %s: %w", cs.ID, err))
			continue
		}
		j.done[cs.ID] = struct{}{}
		stats.SessionsProcessed++
		stats.StudentsProcessed += res.Processed
		stats.StudentsFailed += res.Failed()
	}
	j.lastStats = stats

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	j.watermark = to
	clear(j.done)

	j.log.Info("sweep completed",
		logger.Int("sessions", stats.SessionsProcessed),
		logger.Int("skipped", stats.SessionsSkipped),
		logger.Int("students", stats.StudentsProcessed),
		logger.Int("failed", stats.StudentsFailed))
	return nil
}

// LastStats returns statistics from the most recent sweep.
func (j *ProcessEndedSessionsJob) LastStats() SweepStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastStats
}
