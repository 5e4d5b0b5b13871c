package student

import (
	"net/mail"
	"strings"
	"time"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - студент. Поля идентичности не меняются после создания.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewStudentParams содержит параметры для создания студента.
type NewStudentParams struct {
	ID     string
	Name   string
	Email  string
	Avatar string
	Now    time.Time
}

// NewStudent создаёт студента с валидацией.
func NewStudent(p NewStudentParams) (*Student, error) {
	if p.ID == "" {
		return nil, shared.ValidationError("student", "New", "student id is required")
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, shared.ValidationError("student", "New", "name is required")
	}
	if len(name) > 200 {
		return nil, shared.ValidationError("student", "New", "name is too long")
	}

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, shared.WrapError("student", "New", shared.ErrValidation, "invalid email address", err)
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return &Student{
		ID:        p.ID,
		Name:      name,
		Email:     email,
		Avatar:    strings.TrimSpace(p.Avatar),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// Class - учебный курс.
type Class struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

// Topic - тема занятия.
type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClassSession - конкретное занятие курса по одной теме.
type ClassSession struct {
	ID               string    `json:"id"`
	ClassID          string    `json:"classId"`
	TopicID          string    `json:"topicId"`
	StartTime        time.Time `json:"startTime"`
	DurationMinutes  int       `json:"duration"`
	ParticipantCount int       `json:"participantCount"`
	Class            Class     `json:"class"`
	Topic            Topic     `json:"topic"`
}

// EndTime возвращает время окончания занятия.
func (s *ClassSession) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT SESSION
// ══════════════════════════════════════════════════════════════════════════════

// StudentSession - метрики одного студента за одно занятие.
// Student и Session заполняются репозиторием при чтении с join.
type StudentSession struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId"`
	SessionID string `json:"sessionId"`

	engagement.Metrics

	ConfusionIncidents int       `json:"confusionIncidents"`
	CreatedAt          time.Time `json:"createdAt"`

	Student *Student      `json:"student,omitempty"`
	Session *ClassSession `json:"session,omitempty"`
}

// Subject возвращает предмет курса, если занятие загружено.
func (ss *StudentSession) Subject() string {
	if ss.Session == nil {
		return ""
	}
	return ss.Session.Class.Subject
}

// TopicName возвращает название темы, если занятие загружено.
func (ss *StudentSession) TopicName() string {
	if ss.Session == nil {
		return ""
	}
	return ss.Session.Topic.Name
}
