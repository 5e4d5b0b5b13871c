package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// Студенты со сводкой по последним занятиям, письмам и встречам.
// ══════════════════════════════════════════════════════════════════════════════

// Размеры вложенных списков.
const (
	DefaultStudentLimit  = 50
	embeddedEmailLimit   = 3
	embeddedMeetingLimit = 3

	// listBatchSize - сколько студентов загружается за один проход.
	listBatchSize = 100
)

// ListStudentsQuery содержит фильтры списка.
type ListStudentsQuery struct {
	// Status - фильтр по категории (пусто = все).
	Status student.Status

	// Subject - оставить студентов с этим предметом среди последних занятий.
	Subject string

	// Limit - по умолчанию 50.
	Limit int
}

// Validate проверяет параметры и выставляет значения по умолчанию.
func (q *ListStudentsQuery) Validate() error {
	if q.Status != "" && !q.Status.IsValid() {
		return shared.ValidationError("student", "List", "unknown status: "+string(q.Status))
	}
	if q.Limit < 0 {
		return shared.ValidationError("student", "List", "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultStudentLimit
	}
	return nil
}

// StudentView - студент со сводкой и вложенными записями.
type StudentView struct {
	*student.Student
	student.Summary
	Sessions []*student.StudentSession `json:"sessions"`
	Emails   []*notification.Email     `json:"emails"`
	Meetings []*meeting.Meeting        `json:"meetings"`
}

// ListStudentsHandler обрабатывает запрос списка студентов.
type ListStudentsHandler struct {
	students student.Repository
	sessions student.SessionRepository
	emails   notification.EmailRepository
	meetings meeting.Repository
}

// NewListStudentsHandler создаёт обработчик.
func NewListStudentsHandler(
	students student.Repository,
	sessions student.SessionRepository,
	emails notification.EmailRepository,
	meetings meeting.Repository,
) *ListStudentsHandler {
	return &ListStudentsHandler{students: students, sessions: sessions, emails: emails, meetings: meetings}
}

// Handle выполняет запрос. Фильтры применяются к производной сводке,
// поэтому записи строятся пачками по listBatchSize студентов: на пачку
// приходится по одному запросу к занятиям, письмам и встречам.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) ([]StudentView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	all, err := h.students.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_students: %w", err)
	}

	out := make([]StudentView, 0, min(len(all), q.Limit))
	for start := 0; start < len(all) && len(out) < q.Limit; start += listBatchSize {
		batch := all[start:min(start+listBatchSize, len(all))]

		views, err := h.buildBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, view := range views {
			if len(out) >= q.Limit {
				break
			}
			if q.Status != "" && view.Status != q.Status {
				continue
			}
			if q.Subject != "" && !view.HasSubject(q.Subject) {
				continue
			}
			out = append(out, view)
		}
	}
	return out, nil
}

func (h *ListStudentsHandler) buildBatch(ctx context.Context, batch []*student.Student) ([]StudentView, error) {
	ids := make([]string, len(batch))
	for i, s := range batch {
		ids[i] = s.ID
	}

	sessions, err := h.sessions.RecentForStudents(ctx, ids, student.RecentSessionWindow)
	if err != nil {
		return nil, fmt.Errorf("list_students: sessions: %w", err)
	}
	emails, err := h.emails.RecentForStudents(ctx, ids, embeddedEmailLimit)
	if err != nil {
		return nil, fmt.Errorf("list_students: emails: %w", err)
	}
	meetings, err := h.meetings.RecentForStudents(ctx, ids, embeddedMeetingLimit)
	if err != nil {
		return nil, fmt.Errorf("list_students: meetings: %w", err)
	}

	views := make([]StudentView, len(batch))
	for i, s := range batch {
		recent := sessions[s.ID]
		// студент уже является корнем записи
		for _, ss := range recent {
			ss.Student = nil
		}
		views[i] = StudentView{
			Student:  s,
			Summary:  student.Summarize(s, recent),
			Sessions: nonNil(recent),
			Emails:   nonNil(emails[s.ID]),
			Meetings: nonNil(meetings[s.ID]),
		}
	}
	return views, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
