package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEETING REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MeetingRepository реализует meeting.Repository.
type MeetingRepository struct {
	conn *Connection
}

// NewMeetingRepository создаёт репозиторий.
func NewMeetingRepository(conn *Connection) *MeetingRepository {
	return &MeetingRepository{conn: conn}
}

const meetingColumns = `id, student_id, title, description, scheduled_for, status, created_at`

// Create сохраняет встречу.
func (r *MeetingRepository) Create(ctx context.Context, m *meeting.Meeting) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.StudentID, m.Title, m.Description, m.ScheduledFor, string(m.Status), m.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrStudentNotFound
		}
		return fmt.Errorf("postgres: create meeting: %w", err)
	}
	return nil
}

// List возвращает встречи, ближайшие первыми.
func (r *MeetingRepository) List(ctx context.Context, filter meeting.Filter) ([]*meeting.Meeting, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	if filter.Status != "" {
		return r.query(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE status = $1 ORDER BY scheduled_for, id LIMIT $2`,
			string(filter.Status), filter.Limit)
	}
	return r.query(ctx, `SELECT `+meetingColumns+` FROM meetings ORDER BY scheduled_for, id LIMIT $1`, filter.Limit)
}

// RecentForStudents возвращает последние встречи нескольких студентов
// одним запросом.
func (r *MeetingRepository) RecentForStudents(ctx context.Context, studentIDs []string, limit int) (map[string][]*meeting.Meeting, error) {
	if len(studentIDs) == 0 {
		return map[string][]*meeting.Meeting{}, nil
	}
	out, err := r.query(ctx, `
		SELECT `+meetingColumns+` FROM (
			SELECT `+meetingColumns+`,
			       ROW_NUMBER() OVER (PARTITION BY student_id ORDER BY scheduled_for DESC, id DESC) AS rn
			FROM meetings
			WHERE student_id = ANY($1)
		) recent
		WHERE rn <= $2
		ORDER BY student_id, scheduled_for DESC, id DESC`, studentIDs, limit)
	if err != nil {
		return nil, err
	}
	return groupByStudent(out, func(m *meeting.Meeting) string { return m.StudentID }), nil
}

func (r *MeetingRepository) query(ctx context.Context, sql string, args ...any) ([]*meeting.Meeting, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list meetings: %w", err)
	}
	defer rows.Close()

	var out []*meeting.Meeting
	for rows.Next() {
		var m meeting.Meeting
		if err := rows.Scan(&m.ID, &m.StudentID, &m.Title, &m.Description, &m.ScheduledFor, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan meeting: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

var _ meeting.Repository = (*MeetingRepository)(nil)
