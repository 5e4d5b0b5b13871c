// Package engagement contains the rule engine of the engagement agent:
// the fixed threshold policy, the triggers it produces and the classifier
// that turns triggers into a single intervention.
package engagement

import (
	"fmt"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metric names one of the four per-session behavioural scores.
type Metric string

const (
	MetricEngagement     Metric = "engagement"
	MetricDistractedness Metric = "distractedness"
	MetricConfusion      Metric = "confusion"
	MetricBoredom        Metric = "boredom"
)

// IsValid reports whether m is a known metric.
func (m Metric) IsValid() bool {
	switch m {
	case MetricEngagement, MetricDistractedness, MetricConfusion, MetricBoredom:
		return true
	default:
		return false
	}
}

// String returns the metric name.
func (m Metric) String() string {
	return string(m)
}

// MinScore and MaxScore bound every metric.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Metrics is the per-student, per-session aggregate written by the upstream
// measurement pipeline. All four scores are on a 0-100 scale.
type Metrics struct {
	Engagement     float64 `json:"engagement"`
	Distractedness float64 `json:"distractedness"`
	Confusion      float64 `json:"confusion"`
	Boredom        float64 `json:"boredom"`
}

// Value returns the score for the named metric.
func (m Metrics) Value(metric Metric) float64 {
	switch metric {
	case MetricEngagement:
		return m.Engagement
	case MetricDistractedness:
		return m.Distractedness
	case MetricConfusion:
		return m.Confusion
	case MetricBoredom:
		return m.Boredom
	default:
		return 0
	}
}

// Validate checks that every score lies in [0, 100].
func (m Metrics) Validate() error {
	for _, metric := range []Metric{MetricEngagement, MetricDistractedness, MetricConfusion, MetricBoredom} {
		v := m.Value(metric)
		if v < MinScore || v > MaxScore {
			return shared.WrapError("engagement", "Validate", shared.ErrValueOutOfRange,
				"metric must be between 0 and 100", fmt.Errorf("%s=%v", metric, v))
		}
	}
	return nil
}
