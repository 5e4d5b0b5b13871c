package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

func TestSeedDemo_JoinsRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	ids, err := SeedDemo(s, now)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	ss, err := s.Sessions().GetStudentSession(ctx, "student-alex", "session-physics-1")
	require.NoError(t, err)
	assert.Equal(t, "Alex", ss.Student.Name)
	assert.Equal(t, "Physics", ss.Subject())
	assert.Equal(t, "Quantum Mechanics", ss.TopicName())

	_, err = s.Sessions().GetStudentSession(ctx, "student-alex", "missing")
	assert.True(t, shared.IsNotFound(err))

	roster, err := s.Sessions().ListBySession(ctx, "session-math-1")
	require.NoError(t, err)
	assert.Len(t, roster, 3)

	recent, err := s.Sessions().RecentForStudents(ctx, []string{"student-alex", "student-nobody"}, 5)
	require.NoError(t, err)
	require.Len(t, recent["student-alex"], 2)
	assert.Equal(t, "session-physics-1", recent["student-alex"][0].SessionID)
	assert.NotContains(t, recent, "student-nobody")

	capped, err := s.Sessions().RecentForStudents(ctx, []string{"student-alex"}, 1)
	require.NoError(t, err)
	assert.Len(t, capped["student-alex"], 1)

	ended, err := s.Sessions().ListEndedBetween(ctx, now.Add(-2*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, "session-physics-1", ended[0].ID)
}

func TestStore_RejectsInvalidMetrics(t *testing.T) {
	s := NewStore()
	_, err := SeedDemo(s, time.Now())
	require.NoError(t, err)

	err = s.AddStudentSession(student.StudentSession{
		StudentID: "student-sam", SessionID: "session-math-1",
		Metrics: engagement.Metrics{Engagement: 101},
	})
	assert.True(t, shared.IsValidation(err))
}

func TestStore_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a, _ := student.NewStudent(student.NewStudentParams{ID: "a", Name: "A", Email: "a@x.io"})
	b, _ := student.NewStudent(student.NewStudentParams{ID: "b", Name: "B", Email: "a@x.io"})

	require.NoError(t, s.Students().Create(ctx, a))
	assert.True(t, shared.IsAlreadyExists(s.Students().Create(ctx, b)))
}

func TestAnalytics_AtRiskSortedAndCapped(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.AddClass(student.Class{ID: "c", Subject: "Physics"})
	s.AddTopic(student.Topic{ID: "t", Name: "Optics"})
	require.NoError(t, s.AddClassSession(student.ClassSession{ID: "cs", ClassID: "c", TopicID: "t"}))

	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("s-%02d", i)
		st, err := student.NewStudent(student.NewStudentParams{ID: id, Name: id, Email: id + "@x.io"})
		require.NoError(t, err)
		require.NoError(t, s.Students().Create(ctx, st))

		m := engagement.Metrics{Engagement: float64((i * 37) % 49)} // 50 qualifying rows below 49
		if i >= 50 {
			m = engagement.Metrics{Engagement: 90}
		}
		require.NoError(t, s.AddStudentSession(student.StudentSession{ID: id, StudentID: id, SessionID: "cs", Metrics: m}))
	}

	rows, err := s.Analytics().AtRisk(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for i := 1; i < len(rows); i++ {
		assert.LessOrEqual(t, rows[i-1].Engagement, rows[i].Engagement)
	}

	agg, err := s.Analytics().Aggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, agg.TotalSessions)
	require.NotNil(t, agg.AverageEngagement)
}

func TestAnalytics_EmptyAggregate(t *testing.T) {
	agg, err := NewStore().Analytics().Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, agg.TotalSessions)
	assert.Nil(t, agg.AverageEngagement)
}

func TestEmails_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	st, _ := student.NewStudent(student.NewStudentParams{ID: "a", Name: "A", Email: "a@x.io"})
	require.NoError(t, s.Students().Create(ctx, st))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		status := notification.StatusSent
		if i%2 == 1 {
			status = notification.StatusFailed
		}
		require.NoError(t, s.Emails().Create(ctx, &notification.Email{
			ID: fmt.Sprintf("e%d", i), StudentID: "a", Type: notification.TypeAtRiskAlert,
			Status: status, Priority: notification.PriorityHigh, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := s.Emails().List(ctx, notification.EmailFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "e3", all[0].ID)

	failed, err := s.Emails().List(ctx, notification.EmailFilter{Status: notification.StatusFailed, Limit: 1})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "e3", failed[0].ID)
}

func TestRunGuard(t *testing.T) {
	ctx := context.Background()
	g := NewRunGuard()

	release, err := g.Acquire(ctx, "s", "x")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "s", "x")
	assert.ErrorIs(t, err, shared.ErrInProgress)

	_, err = g.Acquire(ctx, "s", "y")
	assert.NoError(t, err)

	release()
	release()

	var wg sync.WaitGroup
	wins := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Acquire(ctx, "s", "x"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	assert.Len(t, wins, 1)
}

func TestRunGuard_IDsWithColons(t *testing.T) {
	ctx := context.Background()
	g := NewRunGuard()

	_, err := g.Acquire(ctx, "a:b", "c")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "a", "b:c")
	assert.NoError(t, err, "different pairs must not share a lock")
}
