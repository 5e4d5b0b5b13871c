package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration - одна версия схемы.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator применяет встроенные миграции по порядку, каждую в своей транзакции.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator создаёт мигратор со встроенными миграциями.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: Migrations(), tableName: "schema_migrations"}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, m.tableName))
	if err != nil {
		return fmt.Errorf("postgres: create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("postgres: read migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var v int
		var at time.Time
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		out[v] = at
	}
	return out, rows.Err()
}

// Migrate применяет все непримененные миграции.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Status возвращает список миграций с отметкой о применении.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := done[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// Migrations возвращает встроенные миграции по возрастанию версии.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_reference_data", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_student_sessions", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_emails_and_meetings", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDENTS, CLASSES, TOPICS, CLASS SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id         TEXT PRIMARY KEY,
    name       VARCHAR(200) NOT NULL,
    email      VARCHAR(320) NOT NULL UNIQUE,
    avatar     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS classes (
    id      TEXT PRIMARY KEY,
    name    VARCHAR(200) NOT NULL,
    subject VARCHAR(200) NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
    id   TEXT PRIMARY KEY,
    name VARCHAR(200) NOT NULL
);

CREATE TABLE IF NOT EXISTS class_sessions (
    id                TEXT PRIMARY KEY,
    class_id          TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    topic_id          TEXT NOT NULL REFERENCES topics(id),
    start_time        TIMESTAMPTZ NOT NULL,
    duration_minutes  INTEGER NOT NULL DEFAULT 60 CHECK (duration_minutes >= 0),
    participant_count INTEGER NOT NULL DEFAULT 0 CHECK (participant_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_class_sessions_start ON class_sessions(start_time);
`

const migration001Down = `
DROP TABLE IF EXISTS class_sessions;
DROP TABLE IF EXISTS topics;
DROP TABLE IF EXISTS classes;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: STUDENT SESSIONS (written by the measurement pipeline)
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS student_sessions (
    id                  TEXT PRIMARY KEY,
    student_id          TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    session_id          TEXT NOT NULL REFERENCES class_sessions(id) ON DELETE CASCADE,
    engagement          DOUBLE PRECISION NOT NULL CHECK (engagement BETWEEN 0 AND 100),
    distractedness      DOUBLE PRECISION NOT NULL CHECK (distractedness BETWEEN 0 AND 100),
    confusion           DOUBLE PRECISION NOT NULL CHECK (confusion BETWEEN 0 AND 100),
    boredom             DOUBLE PRECISION NOT NULL CHECK (boredom BETWEEN 0 AND 100),
    confusion_incidents INTEGER NOT NULL DEFAULT 0 CHECK (confusion_incidents >= 0),
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_student_session UNIQUE (student_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_student_sessions_session ON student_sessions(session_id);
CREATE INDEX IF NOT EXISTS idx_student_sessions_student_recent ON student_sessions(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_student_sessions_engagement ON student_sessions(engagement);
`

const migration002Down = `
DROP TABLE IF EXISTS student_sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: EMAILS AND MEETINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS emails (
    id            TEXT PRIMARY KEY,
    student_id    TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    type          VARCHAR(32) NOT NULL,
    subject       TEXT NOT NULL,
    content       TEXT NOT NULL,
    status        VARCHAR(16) NOT NULL DEFAULT 'PENDING',
    priority      VARCHAR(16) NOT NULL DEFAULT 'MEDIUM',
    sent_at       TIMESTAMPTZ,
    scheduled_for TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_email_type CHECK (type IN ('AT_RISK_ALERT', 'CONFUSION_ALERT', 'MEETING_REQUEST', 'ENCOURAGEMENT', 'REMINDER')),
    CONSTRAINT valid_email_status CHECK (status IN ('PENDING', 'SENT', 'FAILED')),
    CONSTRAINT valid_email_priority CHECK (priority IN ('HIGH', 'MEDIUM', 'LOW'))
);

CREATE INDEX IF NOT EXISTS idx_emails_created ON emails(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_emails_student_created ON emails(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);

CREATE TABLE IF NOT EXISTS meetings (
    id            TEXT PRIMARY KEY,
    student_id    TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    scheduled_for TIMESTAMPTZ NOT NULL,
    status        VARCHAR(16) NOT NULL DEFAULT 'SCHEDULED',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_meeting_status CHECK (status IN ('SCHEDULED', 'CONFIRMED', 'CANCELLED'))
);

CREATE INDEX IF NOT EXISTS idx_meetings_student_scheduled ON meetings(student_id, scheduled_for DESC);
CREATE INDEX IF NOT EXISTS idx_meetings_scheduled ON meetings(scheduled_for);
`

const migration003Down = `
DROP TABLE IF EXISTS meetings;
DROP TABLE IF EXISTS emails;
`
