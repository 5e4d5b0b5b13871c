package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENQUEUE EMAIL COMMAND
// Stores a manually composed email as PENDING. Bypasses the agent pipeline;
// nothing is sent.
// ══════════════════════════════════════════════════════════════════════════════

// EnqueueEmailCommand contains a manually composed email.
type EnqueueEmailCommand struct {
	StudentID    string
	Type         notification.EmailType
	Subject      string
	Content      string
	Priority     notification.Priority
	ScheduledFor *time.Time
}

// EnqueuedEmail is the stored email with its recipient.
type EnqueuedEmail struct {
	*notification.Email
	Student *student.Student `json:"student"`
}

// EnqueueEmailHandler handles the EnqueueEmailCommand.
type EnqueueEmailHandler struct {
	students student.Repository
	emails   notification.EmailRepository
	newID    IDFunc
	now      Clock
}

// NewEnqueueEmailHandler creates a new EnqueueEmailHandler.
func NewEnqueueEmailHandler(students student.Repository, emails notification.EmailRepository) *EnqueueEmailHandler {
	return &EnqueueEmailHandler{students: students, emails: emails, newID: defaultID, now: defaultClock}
}

// Handle stores the email. Priority defaults to MEDIUM.
func (h *EnqueueEmailHandler) Handle(ctx context.Context, cmd EnqueueEmailCommand) (*EnqueuedEmail, error) {
	if cmd.Priority == "" {
		cmd.Priority = notification.PriorityMedium
	}

	email, err := notification.NewPendingEmail(notification.NewEmailParams{
		ID:           h.newID(),
		StudentID:    cmd.StudentID,
		Type:         cmd.Type,
		Subject:      cmd.Subject,
		Content:      cmd.Content,
		Priority:     cmd.Priority,
		ScheduledFor: cmd.ScheduledFor,
		Now:          h.now(),
	})
	if err != nil {
		return nil, err
	}

	s, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("enqueue_email: %w", err)
	}

	if err := h.emails.Create(ctx, email); err != nil {
		return nil, fmt.Errorf("enqueue_email: save email: %w", err)
	}
	return &EnqueuedEmail{Email: email, Student: s}, nil
}
