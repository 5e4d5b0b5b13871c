package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL REPOSITORY
// Записи писем только добавляются; повтор отправки создаёт новую запись.
// ══════════════════════════════════════════════════════════════════════════════

// EmailRepository реализует notification.EmailRepository.
type EmailRepository struct {
	conn *Connection
}

// NewEmailRepository создаёт репозиторий.
func NewEmailRepository(conn *Connection) *EmailRepository {
	return &EmailRepository{conn: conn}
}

const emailColumns = `id, student_id, type, subject, content, status, priority, sent_at, scheduled_for, created_at`

func scanEmail(row pgx.Row) (*notification.Email, error) {
	var e notification.Email
	err := row.Scan(&e.ID, &e.StudentID, &e.Type, &e.Subject, &e.Content,
		&e.Status, &e.Priority, &e.SentAt, &e.ScheduledFor, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create сохраняет запись.
func (r *EmailRepository) Create(ctx context.Context, e *notification.Email) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO emails (`+emailColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.StudentID, string(e.Type), e.Subject, e.Content,
		string(e.Status), string(e.Priority), e.SentAt, e.ScheduledFor, e.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrStudentNotFound
		}
		return fmt.Errorf("postgres: create email: %w", err)
	}
	return nil
}

// buildEmailListQuery строит запрос списка по фильтру. filter уже нормализован.
func buildEmailListQuery(filter notification.EmailFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value string) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.Type != "" {
		add("type", string(filter.Type))
	}
	if filter.Priority != "" {
		add("priority", string(filter.Priority))
	}

	var b strings.Builder
	b.WriteString("SELECT " + emailColumns + " FROM emails")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	args = append(args, filter.Limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	return b.String(), args
}

// List возвращает письма по фильтру, новые первыми.
func (r *EmailRepository) List(ctx context.Context, filter notification.EmailFilter) ([]*notification.Email, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	sql, args := buildEmailListQuery(filter)
	return r.query(ctx, sql, args...)
}

// RecentForStudents возвращает последние письма нескольких студентов
// одним запросом.
func (r *EmailRepository) RecentForStudents(ctx context.Context, studentIDs []string, limit int) (map[string][]*notification.Email, error) {
	if len(studentIDs) == 0 {
		return map[string][]*notification.Email{}, nil
	}
	out, err := r.query(ctx, `
		SELECT `+emailColumns+` FROM (
			SELECT `+emailColumns+`,
			       ROW_NUMBER() OVER (PARTITION BY student_id ORDER BY created_at DESC, id DESC) AS rn
			FROM emails
			WHERE student_id = ANY($1)
		) recent
		WHERE rn <= $2
		ORDER BY student_id, created_at DESC, id DESC`, studentIDs, limit)
	if err != nil {
		return nil, err
	}
	return groupByStudent(out, func(e *notification.Email) string { return e.StudentID }), nil
}

func (r *EmailRepository) query(ctx context.Context, sql string, args ...any) ([]*notification.Email, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list emails: %w", err)
	}
	defer rows.Close()

	var out []*notification.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan email: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ notification.EmailRepository = (*EmailRepository)(nil)
