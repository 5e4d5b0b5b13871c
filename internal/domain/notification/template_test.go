package notification

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

func TestDefaultCatalog_Entries(t *testing.T) {
	c := DefaultCatalog()

	all := c.All()
	require.Len(t, all, 5)
	assert.Equal(t, TypeAtRiskAlert, all[0].Type)
	assert.Equal(t, TypeReminder, all[4].Type)

	for _, typ := range []EmailType{TypeAtRiskAlert, TypeConfusionAlert, TypeMeetingRequest, TypeEncouragement} {
		_, ok := c.ByType(typ)
		assert.True(t, ok, "classifier type %s must have a template", typ)
	}

	// every declared variable appears somewhere in the template
	for _, tpl := range all {
		for _, v := range tpl.Variables {
			token := "{" + v + "}"
			assert.True(t, strings.Contains(tpl.Subject, token) || strings.Contains(tpl.Body, token),
				"%s: %s not used", tpl.ID, token)
		}
	}
}

func TestCatalog_Lookups(t *testing.T) {
	c := DefaultCatalog()

	tpl, err := c.ByID("confusion-alert")
	require.NoError(t, err)
	assert.Equal(t, TypeConfusionAlert, tpl.Type)

	_, err = c.ByID("nope")
	assert.True(t, shared.IsNotFound(err))

	meetings := c.ByCategory("Meeting Request")
	require.Len(t, meetings, 2)
	assert.Equal(t, "at-risk-alert", meetings[0].ID)
	assert.Equal(t, "meeting-request", meetings[1].ID)

	assert.Empty(t, c.ByCategory("Unknown"))
}

func TestCatalog_Render_AtRisk(t *testing.T) {
	c := DefaultCatalog()

	out, err := c.Render(TypeAtRiskAlert, Bindings{
		VarStudentName: "Alex",
		VarSubject:     "Physics",
		VarTopic:       "Quantum Mechanics",
		VarEngagement:  "45",
	})
	require.NoError(t, err)

	assert.Equal(t, "Let's Schedule a Check-in - Alex", out.Subject)
	assert.Contains(t, out.Body, "Hi Alex,")
	assert.Contains(t, out.Body, "<strong>Physics</strong>")
	assert.Contains(t, out.Body, "<strong>Quantum Mechanics</strong>")
	assert.Contains(t, out.Body, "<strong>45%</strong>")
}

func TestCatalog_Render_MissingTemplate(t *testing.T) {
	c := NewCatalog()

	_, err := c.Render(TypeAtRiskAlert, Bindings{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingTemplate))
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestTemplate_Render_RoundTrip(t *testing.T) {
	tpl, ok := DefaultCatalog().ByType(TypeMeetingRequest)
	require.True(t, ok)

	bindings := Bindings{
		VarStudentName: "Maria",
		VarSubject:     "Chemistry",
		VarEngagement:  "40",
	}
	out := tpl.Render(bindings)
	text := out.Subject + out.Body

	for k := range bindings {
		assert.NotContains(t, text, "{"+k+"}")
	}

	missing := tpl.Missing(bindings)
	assert.Equal(t, []string{VarTopic, VarConfusionIncidents}, missing)
	for _, k := range missing {
		assert.Contains(t, text, "{"+k+"}")
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		bindings Bindings
		want     string
	}{
		{"no tokens", "plain text", Bindings{"a": "1"}, "plain text"},
		{"all occurrences", "{a} and {a}", Bindings{"a": "x"}, "x and x"},
		{"unbound kept", "{a} {b}", Bindings{"a": "x"}, "x {b}"},
		{"nil bindings", "{a}", nil, "{a}"},
		{"non recursive", "{a}", Bindings{"a": "{b}", "b": "y"}, "{b}"},
		{"empty value", "[{a}]", Bindings{"a": ""}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.input, tt.bindings))
		})
	}
}

func TestSubstitute_IdempotentOnRenderedText(t *testing.T) {
	b := Bindings{VarStudentName: "Alex", VarTopic: "Optics"}
	once := Substitute("Hi {studentName}, about {topic}", b)
	assert.Equal(t, once, Substitute(once, b))
}
