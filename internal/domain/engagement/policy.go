package engagement

// ══════════════════════════════════════════════════════════════════════════════
// THRESHOLD POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Comparator is the comparison applied between a score and a limit.
type Comparator string

const (
	// LessThan fires when score < limit.
	LessThan Comparator = "lt"
	// GreaterThan fires when score > limit.
	GreaterThan Comparator = "gt"
)

// Holds reports whether the comparator is satisfied for value against limit.
func (c Comparator) Holds(value, limit float64) bool {
	switch c {
	case LessThan:
		return value < limit
	case GreaterThan:
		return value > limit
	default:
		return false
	}
}

// Severity grades a single threshold breach.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Threshold is one row of the policy table.
type Threshold struct {
	Metric     Metric
	Comparator Comparator
	Limit      float64
	Severity   Severity
}

// Policy is an ordered threshold table. Trigger emission follows row order.
type Policy []Threshold

// Limits of the default policy.
const (
	EngagementLimit     = 50.0
	DistractednessLimit = 70.0
	ConfusionLimit      = 60.0
	BoredomLimit        = 80.0
)

var defaultPolicy = Policy{
	{Metric: MetricEngagement, Comparator: LessThan, Limit: EngagementLimit, Severity: SeverityHigh},
	{Metric: MetricDistractedness, Comparator: GreaterThan, Limit: DistractednessLimit, Severity: SeverityMedium},
	{Metric: MetricConfusion, Comparator: GreaterThan, Limit: ConfusionLimit, Severity: SeverityHigh},
	{Metric: MetricBoredom, Comparator: GreaterThan, Limit: BoredomLimit, Severity: SeverityMedium},
}

// DefaultPolicy returns a copy of the fixed threshold table.
func DefaultPolicy() Policy {
	p := make(Policy, len(defaultPolicy))
	copy(p, defaultPolicy)
	return p
}

// Trigger is a single threshold breach observed during one evaluation.
type Trigger struct {
	Metric    Metric   `json:"metric"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Severity  Severity `json:"severity"`
}

// Evaluate compares m against every row and returns the breaches in table order.
// The result is empty, never nil, when nothing breaches.
func (p Policy) Evaluate(m Metrics) []Trigger {
	triggers := make([]Trigger, 0, len(p))
	for _, t := range p {
		v := m.Value(t.Metric)
		if t.Comparator.Holds(v, t.Limit) {
			triggers = append(triggers, Trigger{
				Metric:    t.Metric,
				Value:     v,
				Threshold: t.Limit,
				Severity:  t.Severity,
			})
		}
	}
	return triggers
}

// Evaluate runs the default policy.
func Evaluate(m Metrics) []Trigger {
	return defaultPolicy.Evaluate(m)
}

// IsAtRisk reports whether a session belongs on the analytics at-risk list.
// Distractedness is not part of this predicate.
func IsAtRisk(m Metrics) bool {
	return m.Engagement < EngagementLimit ||
		m.Confusion > ConfusionLimit ||
		m.Boredom > BoredomLimit
}
