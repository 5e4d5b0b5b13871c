// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ENGAGEMENT ANALYTICS QUERY
// Средние метрики по всем StudentSession и список студентов в зоне риска.
// ══════════════════════════════════════════════════════════════════════════════

// AtRiskLimit - максимальный размер списка студентов в зоне риска.
const AtRiskLimit = 10

// AtRiskStudent - плоская запись списка риска.
type AtRiskStudent struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Engagement float64 `json:"engagement"`
	Confusion  float64 `json:"confusion"`
	Boredom    float64 `json:"boredom"`
	Subject    string  `json:"subject"`
	Topic      string  `json:"topic"`
}

// EngagementAnalytics - результат запроса.
type EngagementAnalytics struct {
	student.Aggregate
	AtRiskStudents []AtRiskStudent `json:"atRiskStudents"`
}

// AnalyticsCache кеширует результат. Промах возвращает (nil, nil).
type AnalyticsCache interface {
	GetAnalytics(ctx context.Context) (*EngagementAnalytics, error)
	SetAnalytics(ctx context.Context, a *EngagementAnalytics) error
}

// GetEngagementAnalyticsHandler обрабатывает запрос аналитики.
type GetEngagementAnalyticsHandler struct {
	analytics student.AnalyticsRepository
	cache     AnalyticsCache
	log       *logger.Logger
}

// NewGetEngagementAnalyticsHandler создаёт обработчик. cache может быть nil.
func NewGetEngagementAnalyticsHandler(analytics student.AnalyticsRepository, cache AnalyticsCache, log *logger.Logger) *GetEngagementAnalyticsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetEngagementAnalyticsHandler{analytics: analytics, cache: cache, log: log}
}

// Handle выполняет запрос. Ошибки кеша не прерывают запрос.
func (h *GetEngagementAnalyticsHandler) Handle(ctx context.Context) (*EngagementAnalytics, error) {
	if h.cache != nil {
		cached, err := h.cache.GetAnalytics(ctx)
		if err != nil {
			h.log.Warn("analytics cache read failed", logger.Err(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	agg, err := h.analytics.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: aggregate: %w", err)
	}

	rows, err := h.analytics.AtRisk(ctx, AtRiskLimit)
	if err != nil {
		return nil, fmt.Errorf("analytics: at-risk: %w", err)
	}
	if len(rows) > AtRiskLimit {
		rows = rows[:AtRiskLimit]
	}

	out := &EngagementAnalytics{
		Aggregate:      agg,
		AtRiskStudents: make([]AtRiskStudent, 0, len(rows)),
	}
	for _, ss := range rows {
		entry := AtRiskStudent{
			ID:         ss.StudentID,
			Engagement: ss.Engagement,
			Confusion:  ss.Confusion,
			Boredom:    ss.Boredom,
			Subject:    ss.Subject(),
			Topic:      ss.TopicName(),
		}
		if ss.Student != nil {
			entry.Name = ss.Student.Name
			entry.Email = ss.Student.Email
		}
		out.AtRiskStudents = append(out.AtRiskStudents, entry)
	}

	if h.cache != nil {
		if err := h.cache.SetAnalytics(ctx, out); err != nil {
			h.log.Warn("analytics cache write failed", logger.Err(err))
		}
	}
	return out, nil
}
