package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS STUDENT ENGAGEMENT COMMAND
// Evaluates one student's metrics for one session, classifies the needed
// intervention, renders and dispatches the email and schedules a follow-up
// meeting when the intervention requires one.
// ══════════════════════════════════════════════════════════════════════════════

// ActionNone is reported when there is nothing to do.
const ActionNone = "none"

// ProcessStudentEngagementCommand identifies the (student, session) pair.
type ProcessStudentEngagementCommand struct {
	StudentID string
	SessionID string
}

// Validate validates the command.
func (c ProcessStudentEngagementCommand) Validate() error {
	if strings.TrimSpace(c.StudentID) == "" {
		return shared.ValidationError("engagement", "Process", "studentId is required")
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return shared.ValidationError("engagement", "Process", "sessionId is required")
	}
	return nil
}

// ProcessStudentResult is the outcome of one pipeline run.
type ProcessStudentResult struct {
	Success          bool                 `json:"success"`
	Action           string               `json:"action"`
	MeetingScheduled bool                 `json:"meetingScheduled"`
	Triggers         []engagement.Trigger `json:"triggers,omitempty"`
	EmailID          string               `json:"emailId,omitempty"`
	MeetingID        string               `json:"meetingId,omitempty"`
	Error            string               `json:"error,omitempty"`
}

func noAction() *ProcessStudentResult {
	return &ProcessStudentResult{Success: true, Action: ActionNone}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// EmailDispatcher sends and records an email.
type EmailDispatcher interface {
	Handle(ctx context.Context, cmd DispatchEmailCommand) (*DispatchResult, error)
}

// MeetingScheduler creates follow-up meetings.
type MeetingScheduler interface {
	Handle(ctx context.Context, cmd ScheduleMeetingCommand) (*meeting.Meeting, error)
}

// RunGuard rejects concurrent runs for the same (student, session) pair.
// Acquire returns shared.ErrRunInProgress when the pair is already held.
type RunGuard interface {
	Acquire(ctx context.Context, studentID, sessionID string) (release func(), err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProcessStudentEngagementHandler handles the ProcessStudentEngagementCommand.
type ProcessStudentEngagementHandler struct {
	sessions   student.SessionRepository
	policy     engagement.Policy
	catalog    *notification.Catalog
	dispatcher EmailDispatcher
	scheduler  MeetingScheduler
	guard      RunGuard
	log        *logger.Logger
}

// NewProcessStudentEngagementHandler creates a new handler. guard may be nil.
func NewProcessStudentEngagementHandler(
	sessions student.SessionRepository,
	catalog *notification.Catalog,
	dispatcher EmailDispatcher,
	scheduler MeetingScheduler,
	guard RunGuard,
	log *logger.Logger,
) *ProcessStudentEngagementHandler {
	if catalog == nil {
		catalog = notification.DefaultCatalog()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessStudentEngagementHandler{
		sessions:   sessions,
		policy:     engagement.DefaultPolicy(),
		catalog:    catalog,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		guard:      guard,
		log:        log.With(logger.Component("agent")),
	}
}

// Handle runs the pipeline. The run is detached from ctx cancellation so that
// a started run always persists its outcome.
func (h *ProcessStudentEngagementHandler) Handle(ctx context.Context, cmd ProcessStudentEngagementCommand) (*ProcessStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	log := h.log.With(logger.StudentID(cmd.StudentID), logger.SessionID(cmd.SessionID))

	if h.guard != nil {
		release, err := h.guard.Acquire(ctx, cmd.StudentID, cmd.SessionID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	ss, err := h.sessions.GetStudentSession(ctx, cmd.StudentID, cmd.SessionID)
	if err != nil {
		if shared.IsNotFound(err) {
			log.Debug("no metrics recorded, nothing to do")
			return noAction(), nil
		}
		return nil, fmt.Errorf("process_student: load student session: %w", err)
	}

	triggers := h.policy.Evaluate(ss.Metrics)
	if len(triggers) == 0 {
		log.Debug("no engagement issues found")
		return noAction(), nil
	}

	action := engagement.Classify(triggers)
	log.Debug("intervention classified",
		logger.EmailType(string(action.Type)),
		logger.Int("triggers", len(triggers)),
		logger.Bool("requires_meeting", action.RequiresMeeting),
	)

	rendered, err := h.catalog.Render(action.Type, BindingsFor(ss))
	if err != nil {
		return nil, fmt.Errorf("process_student: %w", err)
	}

	recipient := ss.Student
	if recipient == nil {
		recipient = &student.Student{ID: ss.StudentID}
	}

	dispatched, err := h.dispatcher.Handle(ctx, DispatchEmailCommand{
		Student:  recipient,
		Type:     action.Type,
		Subject:  rendered.Subject,
		Body:     rendered.Body,
		Priority: action.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("process_student: %w", err)
	}

	result := &ProcessStudentResult{
		Success:  dispatched.Success,
		Action:   string(action.Type),
		Triggers: triggers,
		EmailID:  dispatched.EmailID,
	}

	if action.RequiresMeeting {
		m, err := h.scheduler.Handle(ctx, ScheduleMeetingCommand{
			StudentID:   ss.StudentID,
			Title:       meeting.FollowUpTitle(ss.Subject()),
			Description: meeting.FollowUpDescription(ss.TopicName()),
		})
		if err != nil {
			return nil, fmt.Errorf("process_student: %w", err)
		}
		result.MeetingScheduled = true
		result.MeetingID = m.ID
	}

	log.Info("engagement processed",
		logger.String("action", result.Action),
		logger.Bool("success", result.Success),
		logger.Bool("meeting_scheduled", result.MeetingScheduled),
	)
	return result, nil
}
