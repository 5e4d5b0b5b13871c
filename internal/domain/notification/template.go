package notification

import (
	"sort"
	"strings"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Binding keys understood by the built-in templates.
const (
	VarStudentName        = "studentName"
	VarSubject            = "subject"
	VarTopic              = "topic"
	VarEngagement         = "engagement"
	VarConfusion          = "confusion"
	VarConfusionIncidents = "confusionIncidents"
	VarImprovement        = "improvement"
	VarDate               = "date"
	VarTime               = "time"
)

// Template is a static catalog entry. Variables lists the placeholders the
// subject and body expect, in declaration order.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Type      EmailType `json:"type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"content"`
	Variables []string  `json:"variables"`
}

// Bindings maps a placeholder name to its substituted value.
type Bindings map[string]string

// Rendered is a subject/body pair with placeholders substituted.
type Rendered struct {
	Subject string `json:"subject"`
	Body    string `json:"content"`
}

// ErrMissingTemplate is returned when an email type has no catalog entry.
var ErrMissingTemplate = shared.NewDomainError("notification", "Render", shared.ErrInvalidState, "no template for email type")

// ErrTemplateNotFound is returned by id lookups.
var ErrTemplateNotFound = shared.NewDomainError("notification", "FindTemplate", shared.ErrNotFound, "template not found")

// Catalog is a read-only set of templates keyed by email type.
type Catalog struct {
	byType map[EmailType]Template
	order  []EmailType
}

// NewCatalog builds a catalog. Later entries with a duplicate type replace
// earlier ones.
func NewCatalog(templates ...Template) *Catalog {
	c := &Catalog{byType: make(map[EmailType]Template, len(templates))}
	for _, t := range templates {
		if _, ok := c.byType[t.Type]; !ok {
			c.order = append(c.order, t.Type)
		}
		c.byType[t.Type] = t
	}
	return c
}

// DefaultCatalog returns the built-in templates.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Template{
			ID:        "at-risk-alert",
			Name:      "At-Risk Student Alert",
			Category:  "Meeting Request",
			Type:      TypeAtRiskAlert,
			Subject:   "Let's Schedule a Check-in - {studentName}",
			Body:      atRiskAlertBody,
			Variables: []string{VarStudentName, VarSubject, VarTopic, VarEngagement},
		},
		Template{
			ID:        "confusion-alert",
			Name:      "Confusion Alert & Resources",
			Category:  "Academic Support",
			Type:      TypeConfusionAlert,
			Subject:   "Additional Resources for {topic} - {studentName}",
			Body:      confusionAlertBody,
			Variables: []string{VarStudentName, VarSubject, VarTopic, VarConfusion},
		},
		Template{
			ID:        "encouragement",
			Name:      "Positive Reinforcement",
			Category:  "Encouragement",
			Type:      TypeEncouragement,
			Subject:   "Great Progress, {studentName}!",
			Body:      encouragementBody,
			Variables: []string{VarStudentName, VarSubject, VarEngagement, VarImprovement},
		},
		Template{
			ID:        "meeting-request",
			Name:      "Academic Support Meeting",
			Category:  "Meeting Request",
			Type:      TypeMeetingRequest,
			Subject:   "Meeting Request - Academic Support - {studentName}",
			Body:      meetingRequestBody,
			Variables: []string{VarStudentName, VarSubject, VarTopic, VarEngagement, VarConfusionIncidents},
		},
		Template{
			ID:        "session-reminder",
			Name:      "Session Reminder",
			Category:  "Reminder",
			Type:      TypeReminder,
			Subject:   "Upcoming Session Reminder - {subject}",
			Body:      sessionReminderBody,
			Variables: []string{VarStudentName, VarSubject, VarDate, VarTime, VarTopic},
		},
	)
}

// All returns every template in catalog order.
func (c *Catalog) All() []Template {
	out := make([]Template, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.byType[t])
	}
	return out
}

// ByType returns the template registered for t.
func (c *Catalog) ByType(t EmailType) (Template, bool) {
	tpl, ok := c.byType[t]
	return tpl, ok
}

// ByID returns the template with the given id.
func (c *Catalog) ByID(id string) (Template, error) {
	for _, t := range c.order {
		if c.byType[t].ID == id {
			return c.byType[t], nil
		}
	}
	return Template{}, ErrTemplateNotFound
}

// ByCategory returns the templates in a category, in catalog order.
func (c *Catalog) ByCategory(category string) []Template {
	var out []Template
	for _, t := range c.order {
		if c.byType[t].Category == category {
			out = append(out, c.byType[t])
		}
	}
	return out
}

// Render substitutes bindings into the template registered for t.
func (c *Catalog) Render(t EmailType, b Bindings) (Rendered, error) {
	tpl, ok := c.byType[t]
	if !ok {
		return Rendered{}, shared.WrapError("notification", "Render", shared.ErrInvalidState,
			"no template for email type "+string(t), ErrMissingTemplate)
	}
	return tpl.Render(b), nil
}

// Render substitutes bindings into the template's subject and body.
func (t Template) Render(b Bindings) Rendered {
	return Rendered{
		Subject: Substitute(t.Subject, b),
		Body:    Substitute(t.Body, b),
	}
}

// Missing returns the expected variables that b does not bind.
func (t Template) Missing(b Bindings) []string {
	var out []string
	for _, v := range t.Variables {
		if _, ok := b[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// Substitute replaces every literal {key} token for each bound key in a
// single pass. Substituted values are never rescanned, and tokens without a
// binding stay in the output verbatim.
func Substitute(s string, b Bindings) string {
	if len(b) == 0 || !strings.Contains(s, "{") {
		return s
	}

	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", b[k])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
