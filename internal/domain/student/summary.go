package student

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS BUCKET
// ══════════════════════════════════════════════════════════════════════════════

// Status - категория студента по средней вовлечённости.
type Status string

const (
	StatusAtRisk   Status = "at-risk"
	StatusModerate Status = "moderate"
	StatusEngaged  Status = "engaged"
)

// Границы категорий.
const (
	AtRiskBelow  = 50.0
	EngagedAbove = 80.0
)

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusAtRisk, StatusModerate, StatusEngaged:
		return true
	default:
		return false
	}
}

// BucketFor относит среднюю вовлечённость к категории.
func BucketFor(avgEngagement float64) Status {
	switch {
	case avgEngagement < AtRiskBelow:
		return StatusAtRisk
	case avgEngagement > EngagedAbove:
		return StatusEngaged
	default:
		return StatusModerate
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// RecentSessionWindow - сколько последних занятий учитывается в сводке.
const RecentSessionWindow = 5

// TrendStable - тренд пока не вычисляется по истории.
const TrendStable = "stable"

// Summary - производные показатели студента по последним занятиям.
type Summary struct {
	OverallEngagement       int       `json:"overallEngagement"`
	AvgConfusion            int       `json:"avgConfusion"`
	TotalConfusionIncidents int       `json:"totalConfusionIncidents"`
	RecentTopics            []string  `json:"recentTopics"`
	Subjects                []string  `json:"subjects"`
	LastActive              time.Time `json:"lastActive"`
	Status                  Status    `json:"status"`
	Trend                   string    `json:"trend"`
}

// Summarize вычисляет сводку. sessions отсортированы от новых к старым;
// берутся первые RecentSessionWindow. Без занятий вовлечённость считается
// нулевой, а lastActive равен времени регистрации.
func Summarize(s *Student, sessions []*StudentSession) Summary {
	if len(sessions) > RecentSessionWindow {
		sessions = sessions[:RecentSessionWindow]
	}

	sum := Summary{
		RecentTopics: make([]string, 0, len(sessions)),
		Subjects:     make([]string, 0, len(sessions)),
		LastActive:   s.CreatedAt,
		Trend:        TrendStable,
	}

	var engagementSum, confusionSum float64
	seen := make(map[string]struct{}, len(sessions))
	for _, ss := range sessions {
		engagementSum += ss.Engagement
		confusionSum += ss.Confusion
		sum.TotalConfusionIncidents += ss.ConfusionIncidents
		sum.RecentTopics = append(sum.RecentTopics, ss.TopicName())

		subject := ss.Subject()
		if _, ok := seen[subject]; !ok {
			seen[subject] = struct{}{}
			sum.Subjects = append(sum.Subjects, subject)
		}
	}

	var avgEngagement, avgConfusion float64
	if n := float64(len(sessions)); n > 0 {
		avgEngagement = engagementSum / n
		avgConfusion = confusionSum / n
		sum.LastActive = sessions[0].CreatedAt
	}

	sum.OverallEngagement = int(math.Round(avgEngagement))
	sum.AvgConfusion = int(math.Round(avgConfusion))
	sum.Status = BucketFor(avgEngagement)
	return sum
}

// HasSubject проверяет, встречается ли предмет среди последних занятий.
func (s Summary) HasSubject(subject string) bool {
	for _, v := range s.Subjects {
		if v == subject {
			return true
		}
	}
	return false
}
