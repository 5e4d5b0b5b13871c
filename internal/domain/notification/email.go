// Package notification contains the outbound-communication model of the
// engagement agent: emails, their template catalog and the delivery port.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL TYPE
// ══════════════════════════════════════════════════════════════════════════════

// EmailType identifies both the intervention and the template used for it.
type EmailType string

const (
	TypeAtRiskAlert    EmailType = "AT_RISK_ALERT"
	TypeConfusionAlert EmailType = "CONFUSION_ALERT"
	TypeMeetingRequest EmailType = "MEETING_REQUEST"
	TypeEncouragement  EmailType = "ENCOURAGEMENT"
	TypeReminder       EmailType = "REMINDER"
)

// IsValid reports whether t is a known email type.
func (t EmailType) IsValid() bool {
	switch t {
	case TypeAtRiskAlert, TypeConfusionAlert, TypeMeetingRequest, TypeEncouragement, TypeReminder:
		return true
	default:
		return false
	}
}

// String returns the wire representation.
func (t EmailType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// PRIORITY
// ══════════════════════════════════════════════════════════════════════════════

// Priority orders interventions by urgency.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL STATUS
// ══════════════════════════════════════════════════════════════════════════════

// EmailStatus is the delivery outcome recorded for an email.
type EmailStatus string

const (
	// StatusPending - created manually and not yet handed to the transport.
	StatusPending EmailStatus = "PENDING"

	// StatusSent - accepted by the transport.
	StatusSent EmailStatus = "SENT"

	// StatusFailed - the transport raised an error or timed out.
	StatusFailed EmailStatus = "FAILED"
)

// IsValid reports whether s is a known status.
func (s EmailStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Email is the durable record of one communication attempt.
// Records are never mutated after creation; a retry creates a new record.
type Email struct {
	ID           string      `json:"id"`
	StudentID    string      `json:"studentId"`
	Type         EmailType   `json:"type"`
	Subject      string      `json:"subject"`
	Content      string      `json:"content"`
	Status       EmailStatus `json:"status"`
	Priority     Priority    `json:"priority"`
	SentAt       *time.Time  `json:"sentAt,omitempty"`
	ScheduledFor *time.Time  `json:"scheduledFor,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// NewEmailParams carries the inputs shared by the email constructors.
type NewEmailParams struct {
	ID           string
	StudentID    string
	Type         EmailType
	Subject      string
	Content      string
	Priority     Priority
	ScheduledFor *time.Time
	Now          time.Time
}

func (p NewEmailParams) validate(op string) error {
	if p.ID == "" {
		return shared.ValidationError("notification", op, "email id is required")
	}
	if strings.TrimSpace(p.StudentID) == "" {
		return shared.ValidationError("notification", op, "studentId is required")
	}
	if !p.Type.IsValid() {
		return shared.ValidationError("notification", op, "unknown email type: "+string(p.Type))
	}
	if !p.Priority.IsValid() {
		return shared.ValidationError("notification", op, "unknown priority: "+string(p.Priority))
	}
	return nil
}

func newEmail(p NewEmailParams, status EmailStatus) *Email {
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Email{
		ID:           p.ID,
		StudentID:    p.StudentID,
		Type:         p.Type,
		Subject:      p.Subject,
		Content:      p.Content,
		Status:       status,
		Priority:     p.Priority,
		ScheduledFor: p.ScheduledFor,
		CreatedAt:    now,
	}
}

// NewSentEmail records a successful dispatch; SentAt is the creation time.
func NewSentEmail(p NewEmailParams) (*Email, error) {
	if err := p.validate("NewSent"); err != nil {
		return nil, err
	}
	e := newEmail(p, StatusSent)
	sentAt := e.CreatedAt
	e.SentAt = &sentAt
	return e, nil
}

// NewFailedEmail records a failed dispatch. SentAt stays nil.
func NewFailedEmail(p NewEmailParams) (*Email, error) {
	if err := p.validate("NewFailed"); err != nil {
		return nil, err
	}
	return newEmail(p, StatusFailed), nil
}

// NewPendingEmail creates a manually enqueued email that bypasses the agent.
func NewPendingEmail(p NewEmailParams) (*Email, error) {
	if err := p.validate("NewPending"); err != nil {
		return nil, err
	}
	return newEmail(p, StatusPending), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultListLimit is applied when a listing does not specify a limit.
const DefaultListLimit = 50

// EmailFilter enumerates the filters recognised by the email listing.
// Zero values mean "no filter".
type EmailFilter struct {
	Status   EmailStatus
	Type     EmailType
	Priority Priority
	Limit    int
}

// Normalize fills defaults and validates the enumerated filters.
func (f EmailFilter) Normalize() (EmailFilter, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return f, shared.ValidationError("notification", "List", "unknown status: "+string(f.Status))
	}
	if f.Type != "" && !f.Type.IsValid() {
		return f, shared.ValidationError("notification", "List", "unknown type: "+string(f.Type))
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return f, shared.ValidationError("notification", "List", "unknown priority: "+string(f.Priority))
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return f, nil
}

// Matches reports whether e passes the filter. Limit is not considered.
func (f EmailFilter) Matches(e *Email) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Priority != "" && e.Priority != f.Priority {
		return false
	}
	return true
}

// EmailRepository persists email records.
type EmailRepository interface {
	// Create stores a new email record.
	Create(ctx context.Context, email *Email) error

	// List returns emails matching the filter, newest first.
	List(ctx context.Context, filter EmailFilter) ([]*Email, error)

	// RecentForStudents returns up to limit latest emails per student,
	// newest first, keyed by student id.
	RecentForStudents(ctx context.Context, studentIDs []string, limit int) (map[string][]*Email, error)
}
