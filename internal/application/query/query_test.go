package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/persistence/memory"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	_, err := memory.SeedDemo(s, now)
	require.NoError(t, err)
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

type mapCache struct {
	value  *EngagementAnalytics
	writes int
	err    error
}

func (c *mapCache) GetAnalytics(context.Context) (*EngagementAnalytics, error) {
	return c.value, c.err
}

func (c *mapCache) SetAnalytics(_ context.Context, a *EngagementAnalytics) error {
	c.writes++
	c.value = a
	return nil
}

func TestGetEngagementAnalytics(t *testing.T) {
	s := seeded(t)
	h := NewGetEngagementAnalyticsHandler(s.Analytics(), nil, nil)

	out, err := h.Handle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, out.TotalSessions)
	require.NotNil(t, out.AverageEngagement)
	assert.InDelta(t, (45+52+72+81+88+91)/6.0, *out.AverageEngagement, 1e-9)

	// Alex in Physics (45) and Maria in Physics (confusion 68)
	require.Len(t, out.AtRiskStudents, 2)
	assert.Equal(t, AtRiskStudent{
		ID: "student-alex", Name: "Alex", Email: "alex@university.edu",
		Engagement: 45, Confusion: 20, Boredom: 10,
		Subject: "Physics", Topic: "Quantum Mechanics",
	}, out.AtRiskStudents[0])
	assert.Equal(t, "student-maria", out.AtRiskStudents[1].ID)
}

func TestGetEngagementAnalytics_CapsAtTen(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	s.AddClass(student.Class{ID: "c", Subject: "Physics"})
	s.AddTopic(student.Topic{ID: "t", Name: "Optics"})
	require.NoError(t, s.AddClassSession(student.ClassSession{ID: "cs", ClassID: "c", TopicID: "t"}))
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("s%02d", i)
		st, _ := student.NewStudent(student.NewStudentParams{ID: id, Name: id, Email: id + "@x.io"})
		require.NoError(t, s.Students().Create(ctx, st))
		require.NoError(t, s.AddStudentSession(student.StudentSession{
			ID: id, StudentID: id, SessionID: "cs",
			Metrics: engagement.Metrics{Engagement: float64(49 - i%49), Boredom: 85},
		}))
	}

	out, err := NewGetEngagementAnalyticsHandler(s.Analytics(), nil, nil).Handle(ctx)
	require.NoError(t, err)
	require.Len(t, out.AtRiskStudents, AtRiskLimit)
	for i := 1; i < len(out.AtRiskStudents); i++ {
		assert.LessOrEqual(t, out.AtRiskStudents[i-1].Engagement, out.AtRiskStudents[i].Engagement)
	}
}

func TestGetEngagementAnalytics_Cache(t *testing.T) {
	s := seeded(t)
	cache := &mapCache{}
	h := NewGetEngagementAnalyticsHandler(s.Analytics(), cache, nil)

	first, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes)

	second, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.writes)

	// a broken cache is bypassed
	broken := &mapCache{err: errors.New("redis down")}
	out, err := NewGetEngagementAnalyticsHandler(s.Analytics(), broken, nil).Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, out.TotalSessions)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestListStudents(t *testing.T) {
	s := seeded(t)
	h := NewListStudentsHandler(s.Students(), s.Sessions(), s.Emails(), s.Meetings())

	all, err := h.Handle(context.Background(), ListStudentsQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	alex := all[0]
	assert.Equal(t, "Alex", alex.Name)
	assert.Equal(t, 49, alex.OverallEngagement) // (45 + 52) / 2 = 48.5
	assert.Equal(t, student.StatusAtRisk, alex.Status)
	assert.Equal(t, []string{"Quantum Mechanics", "Limits and Continuity"}, alex.RecentTopics)
	assert.Equal(t, []string{"Physics", "Mathematics"}, alex.Subjects)
	assert.Len(t, alex.Sessions, 2)
	assert.Nil(t, alex.Sessions[0].Student)
	assert.NotNil(t, alex.Emails)
	assert.NotNil(t, alex.Meetings)

	engaged, err := h.Handle(context.Background(), ListStudentsQuery{Status: student.StatusEngaged})
	require.NoError(t, err)
	require.Len(t, engaged, 1)
	assert.Equal(t, "Sam", engaged[0].Name)

	limited, err := h.Handle(context.Background(), ListStudentsQuery{Subject: "Physics", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = h.Handle(context.Background(), ListStudentsQuery{Status: "sleepy"})
	assert.True(t, shared.IsValidation(err))
}

type countingSessions struct {
	student.SessionRepository
	calls int
}

func (c *countingSessions) RecentForStudents(ctx context.Context, ids []string, limit int) (map[string][]*student.StudentSession, error) {
	c.calls++
	return c.SessionRepository.RecentForStudents(ctx, ids, limit)
}

type countingEmails struct {
	notification.EmailRepository
	calls int
}

func (c *countingEmails) RecentForStudents(ctx context.Context, ids []string, limit int) (map[string][]*notification.Email, error) {
	c.calls++
	return c.EmailRepository.RecentForStudents(ctx, ids, limit)
}

type countingMeetings struct {
	meeting.Repository
	calls int
}

func (c *countingMeetings) RecentForStudents(ctx context.Context, ids []string, limit int) (map[string][]*meeting.Meeting, error) {
	c.calls++
	return c.Repository.RecentForStudents(ctx, ids, limit)
}

func TestListStudents_LoadsActivityInBatches(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	for i := 0; i < 2*listBatchSize+10; i++ {
		st, err := student.NewStudent(student.NewStudentParams{
			ID: fmt.Sprintf("st-%03d", i), Name: fmt.Sprintf("Student %d", i),
			Email: fmt.Sprintf("st%d@university.edu", i), Now: now,
		})
		require.NoError(t, err)
		require.NoError(t, s.Students().Create(ctx, st))
	}

	tests := []struct {
		name      string
		query     ListStudentsQuery
		wantViews int
		wantCalls int
	}{
		{"first batch fills the limit", ListStudentsQuery{Limit: 10}, 10, 1},
		{"limit spans batches", ListStudentsQuery{Limit: listBatchSize + 5}, listBatchSize + 5, 2},
		{"filter matching nobody scans every batch", ListStudentsQuery{Status: student.StatusEngaged}, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &countingSessions{SessionRepository: s.Sessions()}
			emails := &countingEmails{EmailRepository: s.Emails()}
			meetings := &countingMeetings{Repository: s.Meetings()}
			h := NewListStudentsHandler(s.Students(), sessions, emails, meetings)

			views, err := h.Handle(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, views, tt.wantViews)
			assert.Equal(t, tt.wantCalls, sessions.calls)
			assert.Equal(t, tt.wantCalls, emails.calls)
			assert.Equal(t, tt.wantCalls, meetings.calls)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAILS / MEETINGS
// ══════════════════════════════════════════════════════════════════════════════

func TestListEmailsAndMeetings(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	require.NoError(t, s.Emails().Create(ctx, &notification.Email{
		ID: "e1", StudentID: "student-alex", Type: notification.TypeAtRiskAlert,
		Status: notification.StatusSent, Priority: notification.PriorityHigh, CreatedAt: now,
	}))
	m, err := meeting.New("m1", "student-alex", meeting.FollowUpTitle("Physics"), "", now)
	require.NoError(t, err)
	require.NoError(t, s.Meetings().Create(ctx, m))

	emails, err := NewListEmailsHandler(s.Emails(), s.Students()).Handle(ctx, notification.EmailFilter{Type: notification.TypeAtRiskAlert})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "Alex", emails[0].Student.Name)

	_, err = NewListEmailsHandler(s.Emails(), s.Students()).Handle(ctx, notification.EmailFilter{Priority: "NOW"})
	assert.True(t, shared.IsValidation(err))

	meetings, err := NewListMeetingsHandler(s.Meetings(), s.Students()).Handle(ctx, meeting.Filter{Status: meeting.StatusScheduled})
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "student-alex", meetings[0].Student.ID)
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

func TestTemplates(t *testing.T) {
	h := NewTemplatesHandler(nil)

	assert.Len(t, h.List(""), 5)
	assert.Len(t, h.List("Meeting Request"), 2)
	assert.Empty(t, h.List("Nope"))

	p, err := h.Preview("session-reminder", notification.Bindings{"studentName": "Alex", "subject": "Physics"})
	require.NoError(t, err)
	assert.Equal(t, "Upcoming Session Reminder - Physics", p.Subject)
	assert.Equal(t, []string{"date", "time", "topic"}, p.Missing)
	assert.Contains(t, p.Body, "{date} at {time}")

	_, err = h.Preview("unknown", nil)
	assert.True(t, shared.IsNotFound(err))
}
