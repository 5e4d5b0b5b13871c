package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

func validParams() NewEmailParams {
	return NewEmailParams{
		ID:        "e-1",
		StudentID: "s-1",
		Type:      TypeAtRiskAlert,
		Subject:   "subj",
		Content:   "<p>body</p>",
		Priority:  PriorityHigh,
		Now:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewSentEmail(t *testing.T) {
	e, err := NewSentEmail(validParams())
	require.NoError(t, err)

	assert.Equal(t, StatusSent, e.Status)
	require.NotNil(t, e.SentAt)
	assert.Equal(t, e.CreatedAt, *e.SentAt)
}

func TestNewFailedEmail(t *testing.T) {
	e, err := NewFailedEmail(validParams())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, e.Status)
	assert.Nil(t, e.SentAt)
}

func TestNewPendingEmail_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *NewEmailParams)
	}{
		{"missing student", func(p *NewEmailParams) { p.StudentID = " " }},
		{"bad type", func(p *NewEmailParams) { p.Type = "SPAM" }},
		{"bad priority", func(p *NewEmailParams) { p.Priority = "URGENT" }},
		{"missing id", func(p *NewEmailParams) { p.ID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := NewPendingEmail(p)
			assert.True(t, shared.IsValidation(err))
		})
	}

	p := validParams()
	at := p.Now.Add(time.Hour)
	p.ScheduledFor = &at
	e, err := NewPendingEmail(p)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)
	assert.Equal(t, &at, e.ScheduledFor)
}

func TestEmailFilter(t *testing.T) {
	f, err := EmailFilter{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit, f.Limit)

	_, err = EmailFilter{Status: "LOST"}.Normalize()
	assert.True(t, shared.IsValidation(err))

	e := &Email{Status: StatusSent, Type: TypeConfusionAlert, Priority: PriorityHigh}
	assert.True(t, EmailFilter{}.Matches(e))
	assert.True(t, EmailFilter{Status: StatusSent, Priority: PriorityHigh}.Matches(e))
	assert.False(t, EmailFilter{Type: TypeAtRiskAlert}.Matches(e))
}
