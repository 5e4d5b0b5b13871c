package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY
// Чтение StudentSession вместе со студентом, занятием, курсом и темой.
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository реализует student.SessionRepository и student.AnalyticsRepository.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository создаёт репозиторий.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const joinedSessionSelect = `
	SELECT ss.id, ss.student_id, ss.session_id,
	       ss.engagement, ss.distractedness, ss.confusion, ss.boredom,
	       ss.confusion_incidents, ss.created_at,
	       st.id, st.name, st.email, st.avatar, st.created_at, st.updated_at,
	       cs.id, cs.class_id, cs.topic_id, cs.start_time, cs.duration_minutes, cs.participant_count,
	       c.id, c.name, c.subject,
	       t.id, t.name
	FROM student_sessions ss
	JOIN students st       ON st.id = ss.student_id
	JOIN class_sessions cs ON cs.id = ss.session_id
	JOIN classes c         ON c.id = cs.class_id
	JOIN topics t          ON t.id = cs.topic_id`

func scanJoinedSession(row pgx.Row) (*student.StudentSession, error) {
	var (
		ss student.StudentSession
		st student.Student
		cs student.ClassSession
	)
	err := row.Scan(
		&ss.ID, &ss.StudentID, &ss.SessionID,
		&ss.Engagement, &ss.Distractedness, &ss.Confusion, &ss.Boredom,
		&ss.ConfusionIncidents, &ss.CreatedAt,
		&st.ID, &st.Name, &st.Email, &st.Avatar, &st.CreatedAt, &st.UpdatedAt,
		&cs.ID, &cs.ClassID, &cs.TopicID, &cs.StartTime, &cs.DurationMinutes, &cs.ParticipantCount,
		&cs.Class.ID, &cs.Class.Name, &cs.Class.Subject,
		&cs.Topic.ID, &cs.Topic.Name,
	)
	if err != nil {
		return nil, err
	}
	ss.Student = &st
	ss.Session = &cs
	return &ss, nil
}

func (r *SessionRepository) queryJoined(ctx context.Context, sql string, args ...any) ([]*student.StudentSession, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*student.StudentSession
	for rows.Next() {
		ss, err := scanJoinedSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// GetStudentSession возвращает метрики студента за занятие.
func (r *SessionRepository) GetStudentSession(ctx context.Context, studentID, sessionID string) (*student.StudentSession, error) {
	ss, err := scanJoinedSession(r.conn.QueryRow(ctx,
		joinedSessionSelect+` WHERE ss.student_id = $1 AND ss.session_id = $2`, studentID, sessionID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentSessionNotFound
		}
		return nil, fmt.Errorf("postgres: get student session: %w", err)
	}
	return ss, nil
}

// ListBySession возвращает всех студентов занятия.
func (r *SessionRepository) ListBySession(ctx context.Context, sessionID string) ([]*student.StudentSession, error) {
	out, err := r.queryJoined(ctx, joinedSessionSelect+` WHERE ss.session_id = $1 ORDER BY ss.created_at, ss.id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list session students: %w", err)
	}
	return out, nil
}

// RecentForStudents возвращает последние записи нескольких студентов
// одним запросом.
func (r *SessionRepository) RecentForStudents(ctx context.Context, studentIDs []string, limit int) (map[string][]*student.StudentSession, error) {
	if len(studentIDs) == 0 {
		return map[string][]*student.StudentSession{}, nil
	}
	out, err := r.queryJoined(ctx, joinedSessionSelect+`
	JOIN (
		SELECT id, ROW_NUMBER() OVER (PARTITION BY student_id ORDER BY created_at DESC, id DESC) AS rn
		FROM student_sessions
		WHERE student_id = ANY($1)
	) recent ON recent.id = ss.id
	WHERE recent.rn <= $2
	ORDER BY ss.student_id, ss.created_at DESC, ss.id DESC`, studentIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent student sessions: %w", err)
	}
	return groupByStudent(out, func(ss *student.StudentSession) string { return ss.StudentID }), nil
}

// ListEndedBetween возвращает занятия, закончившиеся в [from, to).
func (r *SessionRepository) ListEndedBetween(ctx context.Context, from, to time.Time) ([]*student.ClassSession, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT cs.id, cs.class_id, cs.topic_id, cs.start_time, cs.duration_minutes, cs.participant_count,
		       c.id, c.name, c.subject, t.id, t.name
		FROM class_sessions cs
		JOIN classes c ON c.id = cs.class_id
		JOIN topics t  ON t.id = cs.topic_id
		WHERE cs.start_time + make_interval(mins => cs.duration_minutes) >= $1
		  AND cs.start_time + make_interval(mins => cs.duration_minutes) <  $2
		ORDER BY cs.start_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: ended sessions: %w", err)
	}
	defer rows.Close()

	var out []*student.ClassSession
	for rows.Next() {
		var cs student.ClassSession
		if err := rows.Scan(
			&cs.ID, &cs.ClassID, &cs.TopicID, &cs.StartTime, &cs.DurationMinutes, &cs.ParticipantCount,
			&cs.Class.ID, &cs.Class.Name, &cs.Class.Subject, &cs.Topic.ID, &cs.Topic.Name,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan class session: %w", err)
		}
		out = append(out, &cs)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

// Aggregate считает средние по всем записям. AVG по пустой таблице даёт NULL.
func (r *SessionRepository) Aggregate(ctx context.Context) (student.Aggregate, error) {
	var agg student.Aggregate
	err := r.conn.QueryRow(ctx, `
		SELECT AVG(engagement), AVG(distractedness), AVG(confusion), AVG(boredom), COUNT(*)
		FROM student_sessions`,
	).Scan(&agg.AverageEngagement, &agg.AverageDistractedness, &agg.AverageConfusion, &agg.AverageBoredom, &agg.TotalSessions)
	if err != nil {
		return student.Aggregate{}, fmt.Errorf("postgres: aggregate: %w", err)
	}
	return agg, nil
}

// AtRisk возвращает записи в зоне риска по возрастанию вовлечённости.
// Пороги совпадают с engagement.IsAtRisk.
func (r *SessionRepository) AtRisk(ctx context.Context, limit int) ([]*student.StudentSession, error) {
	out, err := r.queryJoined(ctx,
		joinedSessionSelect+`
		WHERE ss.engagement < $1 OR ss.confusion > $2 OR ss.boredom > $3
		ORDER BY ss.engagement ASC, ss.id
		LIMIT $4`,
		engagement.EngagementLimit, engagement.ConfusionLimit, engagement.BoredomLimit, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: at-risk sessions: %w", err)
	}
	return out, nil
}

var (
	_ student.SessionRepository   = (*SessionRepository)(nil)
	_ student.AnalyticsRepository = (*SessionRepository)(nil)
	_ student.Repository          = (*StudentRepository)(nil)
)
