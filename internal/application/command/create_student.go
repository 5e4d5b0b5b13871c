package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand contains registration data.
type CreateStudentCommand struct {
	Name   string
	Email  string
	Avatar string
}

// CreateStudentHandler handles the CreateStudentCommand.
type CreateStudentHandler struct {
	students student.Repository
	newID    IDFunc
	now      Clock
}

// NewCreateStudentHandler creates a new CreateStudentHandler.
func NewCreateStudentHandler(students student.Repository) *CreateStudentHandler {
	return &CreateStudentHandler{students: students, newID: defaultID, now: defaultClock}
}

// Handle validates and stores the student.
// Returns shared.ErrStudentAlreadyExists when the email is taken.
func (h *CreateStudentHandler) Handle(ctx context.Context, cmd CreateStudentCommand) (*student.Student, error) {
	s, err := student.NewStudent(student.NewStudentParams{
		ID:     h.newID(),
		Name:   cmd.Name,
		Email:  cmd.Email,
		Avatar: cmd.Avatar,
		Now:    h.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.students.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create_student: %w", err)
	}
	return s, nil
}
