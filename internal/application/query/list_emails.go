package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST EMAILS / LIST MEETINGS QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// EmailView - письмо с получателем.
type EmailView struct {
	*notification.Email
	Student *student.Student `json:"student,omitempty"`
}

// ListEmailsHandler обрабатывает запрос списка писем.
type ListEmailsHandler struct {
	emails   notification.EmailRepository
	students student.Repository
}

// NewListEmailsHandler создаёт обработчик.
func NewListEmailsHandler(emails notification.EmailRepository, students student.Repository) *ListEmailsHandler {
	return &ListEmailsHandler{emails: emails, students: students}
}

// Handle возвращает письма, новые первыми.
func (h *ListEmailsHandler) Handle(ctx context.Context, filter notification.EmailFilter) ([]EmailView, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	emails, err := h.emails.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_emails: %w", err)
	}

	ids := make([]string, 0, len(emails))
	for _, e := range emails {
		ids = append(ids, e.StudentID)
	}
	students, err := h.students.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list_emails: students: %w", err)
	}

	out := make([]EmailView, 0, len(emails))
	for _, e := range emails {
		out = append(out, EmailView{Email: e, Student: students[e.StudentID]})
	}
	return out, nil
}

// MeetingView - встреча со студентом.
type MeetingView struct {
	*meeting.Meeting
	Student *student.Student `json:"student,omitempty"`
}

// ListMeetingsHandler обрабатывает запрос списка встреч.
type ListMeetingsHandler struct {
	meetings meeting.Repository
	students student.Repository
}

// NewListMeetingsHandler создаёт обработчик.
func NewListMeetingsHandler(meetings meeting.Repository, students student.Repository) *ListMeetingsHandler {
	return &ListMeetingsHandler{meetings: meetings, students: students}
}

// Handle возвращает встречи, ближайшие первыми.
func (h *ListMeetingsHandler) Handle(ctx context.Context, filter meeting.Filter) ([]MeetingView, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	meetings, err := h.meetings.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_meetings: %w", err)
	}

	ids := make([]string, 0, len(meetings))
	for _, m := range meetings {
		ids = append(ids, m.StudentID)
	}
	students, err := h.students.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list_meetings: students: %w", err)
	}

	out := make([]MeetingView, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, MeetingView{Meeting: m, Student: students[m.StudentID]})
	}
	return out, nil
}
