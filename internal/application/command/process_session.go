package command

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS SESSION ENGAGEMENT COMMAND
// Runs the single-student pipeline for every student of a session. One
// student's failure is recorded in its result and never aborts the batch.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessSessionEngagementCommand identifies the session.
type ProcessSessionEngagementCommand struct {
	SessionID string
}

// SessionStudentResult is one student's entry in the batch result.
type SessionStudentResult struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	ProcessStudentResult
}

// ProcessSessionResult aggregates the batch.
type ProcessSessionResult struct {
	Success   bool                   `json:"success"`
	Processed int                    `json:"processed"`
	Results   []SessionStudentResult `json:"results"`
}

// Failed returns the number of students whose run failed.
func (r *ProcessSessionResult) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// StudentProcessor runs the single-student pipeline.
type StudentProcessor interface {
	Handle(ctx context.Context, cmd ProcessStudentEngagementCommand) (*ProcessStudentResult, error)
}

// FailureMessage is reported for a failed student run. Details are logged only.
const FailureMessage = "engagement processing failed"

// ProcessSessionEngagementHandler handles the ProcessSessionEngagementCommand.
type ProcessSessionEngagementHandler struct {
	sessions    student.SessionRepository
	processor   StudentProcessor
	concurrency int
	log         *logger.Logger
}

// NewProcessSessionEngagementHandler creates a new handler. concurrency bounds
// the number of students processed at once; values below 1 mean sequential.
func NewProcessSessionEngagementHandler(
	sessions student.SessionRepository,
	processor StudentProcessor,
	concurrency int,
	log *logger.Logger,
) *ProcessSessionEngagementHandler {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessSessionEngagementHandler{
		sessions:    sessions,
		processor:   processor,
		concurrency: concurrency,
		log:         log.With(logger.Component("batch")),
	}
}

// Handle processes every student of the session. Results keep the order of
// the session roster.
func (h *ProcessSessionEngagementHandler) Handle(ctx context.Context, cmd ProcessSessionEngagementCommand) (*ProcessSessionResult, error) {
	if strings.TrimSpace(cmd.SessionID) == "" {
		return nil, shared.ValidationError("engagement", "ProcessSession", "sessionId is required")
	}
	ctx = context.WithoutCancel(ctx)

	roster, err := h.sessions.ListBySession(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("process_session: list students: %w", err)
	}

	results := make([]SessionStudentResult, len(roster))

	var g errgroup.Group
	g.SetLimit(h.concurrency)
	for i, ss := range roster {
		g.Go(func() error {
			results[i] = h.runOne(ctx, ss)
			return nil
		})
	}
	_ = g.Wait()

	out := &ProcessSessionResult{
		Success:   true,
		Processed: len(results),
		Results:   results,
	}
	h.log.Info("session processed",
		logger.SessionID(cmd.SessionID),
		logger.Int("processed", out.Processed),
		logger.Int("failed", out.Failed()),
	)
	return out, nil
}

func (h *ProcessSessionEngagementHandler) runOne(ctx context.Context, ss *student.StudentSession) (res SessionStudentResult) {
	res.StudentID = ss.StudentID
	if ss.Student != nil {
		res.StudentName = ss.Student.Name
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("student run panicked",
				logger.StudentID(ss.StudentID),
				logger.SessionID(ss.SessionID),
				logger.Any("panic", r),
			)
			res.ProcessStudentResult = ProcessStudentResult{Error: FailureMessage}
		}
	}()

	out, err := h.processor.Handle(ctx, ProcessStudentEngagementCommand{
		StudentID: ss.StudentID,
		SessionID: ss.SessionID,
	})
	if err != nil {
		h.log.Error("student run failed",
			logger.StudentID(ss.StudentID),
			logger.SessionID(ss.SessionID),
			logger.Err(err),
		)
		res.ProcessStudentResult = ProcessStudentResult{Error: FailureMessage}
		return res
	}

	res.ProcessStudentResult = *out
	return res
}
