package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository реализует student.Repository.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository создаёт репозиторий.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `id, name, email, avatar, created_at, updated_at`

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Avatar, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create создаёт студента.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Email, s.Avatar, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("postgres: create student: %w", err)
	}
	return nil
}

// GetByID возвращает студента по ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	s, err := scanStudent(r.conn.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("postgres: get student: %w", err)
	}
	return s, nil
}

// GetByIDs возвращает студентов по списку ID.
func (r *StudentRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*student.Student, error) {
	out := make(map[string]*student.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.conn.Query(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get students: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan student: %w", err)
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

// List возвращает всех студентов в порядке регистрации.
func (r *StudentRepository) List(ctx context.Context) ([]*student.Student, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list students: %w", err)
	}
	defer rows.Close()

	var out []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
