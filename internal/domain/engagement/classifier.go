package engagement

import "github.com/alem-hub/engagement-agent/internal/domain/notification"

// ══════════════════════════════════════════════════════════════════════════════
// ACTION CLASSIFIER
// ══════════════════════════════════════════════════════════════════════════════

// InterventionAction is the classified response to a set of triggers.
type InterventionAction struct {
	Type            notification.EmailType `json:"type"`
	Priority        notification.Priority  `json:"priority"`
	RequiresMeeting bool                   `json:"requiresMeeting"`
}

// Classify maps an ordered trigger list to exactly one intervention.
// Rules are checked top to bottom and the first match wins:
//
//  1. any high severity trigger together with an engagement trigger: at-risk alert with meeting
//  2. a confusion trigger: confusion alert
//  3. an engagement trigger: meeting request with meeting
//  4. anything else, including an empty list: encouragement
//
// With the default policy the engagement trigger is itself high severity, so
// rule 3 is only reachable under a policy that grades engagement lower.
func Classify(triggers []Trigger) InterventionAction {
	var hasHigh, hasEngagement, hasConfusion bool
	for _, t := range triggers {
		if t.Severity == SeverityHigh {
			hasHigh = true
		}
		switch t.Metric {
		case MetricEngagement:
			hasEngagement = true
		case MetricConfusion:
			hasConfusion = true
		}
	}

	switch {
	case hasHigh && hasEngagement:
		return InterventionAction{Type: notification.TypeAtRiskAlert, Priority: notification.PriorityHigh, RequiresMeeting: true}
	case hasConfusion:
		return InterventionAction{Type: notification.TypeConfusionAlert, Priority: notification.PriorityHigh}
	case hasEngagement:
		return InterventionAction{Type: notification.TypeMeetingRequest, Priority: notification.PriorityMedium, RequiresMeeting: true}
	default:
		return InterventionAction{Type: notification.TypeEncouragement, Priority: notification.PriorityLow}
	}
}
