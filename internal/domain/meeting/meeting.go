// Package meeting models follow-up meetings scheduled by the engagement agent.
package meeting

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// FollowUpOffset is the fixed delay between an intervention and its meeting.
const FollowUpOffset = 72 * time.Hour

// Status is the lifecycle state of a meeting.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Meeting is a persisted follow-up meeting.
type Meeting struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"studentId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// New creates a SCHEDULED meeting FollowUpOffset after now.
func New(id, studentID, title, description string, now time.Time) (*Meeting, error) {
	if id == "" {
		return nil, shared.ValidationError("meeting", "New", "meeting id is required")
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, shared.ValidationError("meeting", "New", "studentId is required")
	}
	if strings.TrimSpace(title) == "" {
		return nil, shared.ValidationError("meeting", "New", "title is required")
	}

	return &Meeting{
		ID:           id,
		StudentID:    studentID,
		Title:        title,
		Description:  description,
		ScheduledFor: now.Add(FollowUpOffset),
		Status:       StatusScheduled,
		CreatedAt:    now,
	}, nil
}

// FollowUpTitle builds the title used for agent-scheduled meetings.
func FollowUpTitle(subject string) string {
	return "Academic Support Meeting - " + subject
}

// FollowUpDescription builds the description used for agent-scheduled meetings.
func FollowUpDescription(topic string) string {
	return "Follow-up meeting to discuss engagement and provide additional support for " + topic
}

// DefaultListLimit is applied when a listing does not specify a limit.
const DefaultListLimit = 50

// Filter enumerates the filters recognised by the meeting listing.
type Filter struct {
	Status Status
	Limit  int
}

// Normalize fills defaults and validates the status filter.
func (f Filter) Normalize() (Filter, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return f, shared.ValidationError("meeting", "List", "unknown status: "+string(f.Status))
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return f, nil
}

// Repository persists meetings.
type Repository interface {
	// Create stores a new meeting.
	Create(ctx context.Context, m *Meeting) error

	// List returns meetings matching the filter, soonest first.
	List(ctx context.Context, filter Filter) ([]*Meeting, error)

	// RecentForStudents returns up to limit latest meetings per student,
	// newest first, keyed by student id.
	RecentForStudents(ctx context.Context, studentIDs []string, limit int) (map[string][]*Meeting, error)
}
