package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракт хранилища метрик. Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции со студентами.
type Repository interface {
	// Create создаёт нового студента.
	// Возвращает ErrStudentAlreadyExists, если email уже занят.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает студента по ID.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// GetByIDs возвращает студентов по списку ID. Отсутствующие пропускаются.
	GetByIDs(ctx context.Context, ids []string) (map[string]*Student, error)

	// List возвращает всех студентов в порядке регистрации.
	List(ctx context.Context) ([]*Student, error)
}

// SessionRepository читает метрики занятий.
type SessionRepository interface {
	// GetStudentSession возвращает метрики студента за занятие вместе
	// со студентом, курсом и темой.
	// Возвращает ErrStudentSessionNotFound, если записи нет.
	GetStudentSession(ctx context.Context, studentID, sessionID string) (*StudentSession, error)

	// ListBySession возвращает все записи занятия с join.
	ListBySession(ctx context.Context, sessionID string) ([]*StudentSession, error)

	// RecentForStudents возвращает до limit последних записей каждого
	// студента, новые первыми. Студенты без записей в карту не попадают.
	RecentForStudents(ctx context.Context, studentIDs []string, limit int) (map[string][]*StudentSession, error)

	// ListEndedBetween возвращает занятия, закончившиеся в интервале [from, to).
	ListEndedBetween(ctx context.Context, from, to time.Time) ([]*ClassSession, error)
}

// Aggregate - средние значения метрик по всем записям.
// Средние равны nil, когда записей нет.
type Aggregate struct {
	AverageEngagement     *float64 `json:"averageEngagement"`
	AverageDistractedness *float64 `json:"averageDistractedness"`
	AverageConfusion      *float64 `json:"averageConfusion"`
	AverageBoredom        *float64 `json:"averageBoredom"`
	TotalSessions         int      `json:"totalSessions"`
}

// AnalyticsRepository вычисляет агрегаты для дашборда.
type AnalyticsRepository interface {
	// Aggregate считает средние по всем StudentSession.
	Aggregate(ctx context.Context) (Aggregate, error)

	// AtRisk возвращает записи, попадающие под engagement.IsAtRisk,
	// по возрастанию вовлечённости, не больше limit.
	AtRisk(ctx context.Context, limit int) ([]*StudentSession, error)
}
