package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/persistence/memory"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg notification.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	store    *memory.Store
	sender   *fakeSender
	dispatch *DispatchEmailHandler
	meetings *ScheduleMeetingHandler
	pipeline *ProcessStudentEngagementHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.AddClass(student.Class{ID: "physics", Name: "Physics 101", Subject: "Physics"})
	store.AddTopic(student.Topic{ID: "qm", Name: "Quantum Mechanics"})
	require.NoError(t, store.AddClassSession(student.ClassSession{ID: "s1", ClassID: "physics", TopicID: "qm", StartTime: fixedNow}))

	var seq atomic.Int64
	ids := func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }
	clock := func() time.Time { return fixedNow }

	sender := &fakeSender{}
	dispatch := NewDispatchEmailHandler(sender, store.Emails(), DispatchEmailConfig{Timeout: time.Second}, nil).WithClock(clock, ids)
	meetings := NewScheduleMeetingHandler(store.Meetings()).WithClock(clock, ids)
	pipeline := NewProcessStudentEngagementHandler(store.Sessions(), nil, dispatch, meetings, memory.NewRunGuard(), nil)

	return &fixture{store: store, sender: sender, dispatch: dispatch, meetings: meetings, pipeline: pipeline}
}

func (f *fixture) addStudent(t *testing.T, id, name string, m engagement.Metrics) {
	t.Helper()
	st, err := student.NewStudent(student.NewStudentParams{ID: id, Name: name, Email: strings.ToLower(name) + "@university.edu"})
	require.NoError(t, err)
	require.NoError(t, f.store.Students().Create(context.Background(), st))
	require.NoError(t, f.store.AddStudentSession(student.StudentSession{ID: id + "-s1", StudentID: id, SessionID: "s1", Metrics: m, ConfusionIncidents: 2}))
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ══════════════════════════════════════════════════════════════════════════════

func TestDispatchEmail_ExactlyOneRecord(t *testing.T) {
	tests := []struct {
		name       string
		sendErr    error
		wantStatus notification.EmailStatus
	}{
		{"success", nil, notification.StatusSent},
		{"transport failure", errors.New("connection refused"), notification.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 90})
			f.sender.err = tt.sendErr

			st, err := f.store.Students().GetByID(context.Background(), "alex")
			require.NoError(t, err)

			before := f.store.EmailCount()
			res, err := f.dispatch.Handle(context.Background(), DispatchEmailCommand{
				Student:  st,
				Type:     notification.TypeEncouragement,
				Subject:  "s",
				Body:     "b",
				Priority: notification.PriorityLow,
			})
			require.NoError(t, err)
			assert.Equal(t, before+1, f.store.EmailCount())
			assert.Equal(t, tt.sendErr == nil, res.Success)
			assert.Equal(t, tt.wantStatus, res.Status)

			emails, err := f.store.Emails().List(context.Background(), notification.EmailFilter{})
			require.NoError(t, err)
			require.Len(t, emails, 1)
			if tt.sendErr == nil {
				require.NotNil(t, emails[0].SentAt)
				assert.Equal(t, fixedNow, *emails[0].SentAt)
			} else {
				assert.Nil(t, emails[0].SentAt)
			}
		})
	}
}

func TestDispatchEmail_TimeoutIsFailure(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 90})

	slow := notification.SenderFunc(func(ctx context.Context, _ notification.Message) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h := NewDispatchEmailHandler(slow, f.store.Emails(), DispatchEmailConfig{Timeout: 10 * time.Millisecond}, nil)

	st, _ := f.store.Students().GetByID(context.Background(), "alex")
	res, err := h.Handle(context.Background(), DispatchEmailCommand{
		Student: st, Type: notification.TypeReminder, Priority: notification.PriorityLow,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.StatusFailed, res.Status)
	assert.Equal(t, 1, f.store.EmailCount())
}

func TestDispatchEmail_PersistenceErrorPropagates(t *testing.T) {
	f := newFixture(t)

	// unknown student: the store refuses the record
	_, err := f.dispatch.Handle(context.Background(), DispatchEmailCommand{
		Student:  &student.Student{ID: "ghost", Email: "ghost@x.io"},
		Type:     notification.TypeReminder,
		Priority: notification.PriorityLow,
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// SINGLE-STUDENT PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

func TestProcessStudent_AlexScenario(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 45, Distractedness: 30, Confusion: 20, Boredom: 10})

	res, err := f.pipeline.Handle(context.Background(), ProcessStudentEngagementCommand{StudentID: "alex", SessionID: "s1"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, string(notification.TypeAtRiskAlert), res.Action)
	assert.True(t, res.MeetingScheduled)
	assert.Equal(t, []engagement.Trigger{{Metric: engagement.MetricEngagement, Value: 45, Threshold: 50, Severity: engagement.SeverityHigh}}, res.Triggers)

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "alex@university.edu", msg.To)
	assert.Equal(t, "Let's Schedule a Check-in - Alex", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "<strong>Physics</strong>")
	assert.Contains(t, msg.HTMLBody, "<strong>45%</strong>")

	emails, _ := f.store.Emails().List(context.Background(), notification.EmailFilter{})
	require.Len(t, emails, 1)
	assert.Equal(t, notification.StatusSent, emails[0].Status)
	assert.Equal(t, notification.PriorityHigh, emails[0].Priority)

	recent, _ := f.store.Meetings().RecentForStudents(context.Background(), []string{"alex"}, 3)
	meetings := recent["alex"]
	require.Len(t, meetings, 1)
	assert.Equal(t, fixedNow.Add(72*time.Hour), meetings[0].ScheduledFor)
	assert.Equal(t, "Academic Support Meeting - Physics", meetings[0].Title)
}

func TestProcessStudent_ConfusionAlertNoMeeting(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "maria", "Maria", engagement.Metrics{Engagement: 70, Confusion: 75})

	res, err := f.pipeline.Handle(context.Background(), ProcessStudentEngagementCommand{StudentID: "maria", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, string(notification.TypeConfusionAlert), res.Action)
	assert.False(t, res.MeetingScheduled)
	assert.Equal(t, 0, f.store.MeetingCount())
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Additional Resources for Quantum Mechanics - Maria", f.sender.sent[0].Subject)
	assert.Contains(t, f.sender.sent[0].HTMLBody, "<strong>75%</strong>")
}

func TestProcessStudent_NoTriggers(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "sam", "Sam", engagement.Metrics{Engagement: 88, Distractedness: 10, Confusion: 10, Boredom: 10})

	res, err := f.pipeline.Handle(context.Background(), ProcessStudentEngagementCommand{StudentID: "sam", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, &ProcessStudentResult{Success: true, Action: ActionNone}, res)
	assert.Equal(t, 0, f.store.EmailCount())
	assert.Equal(t, 0, f.store.MeetingCount())
	assert.Empty(t, f.sender.sent)
}

func TestProcessStudent_MissingSessionIsNotAnError(t *testing.T) {
	f := newFixture(t)

	res, err := f.pipeline.Handle(context.Background(), ProcessStudentEngagementCommand{StudentID: "nobody", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.True(t, res.Success)
}

func TestProcessStudent_TransportFailureStillRecords(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 10})
	f.sender.err = errors.New("smtp down")

	res, err := f.pipeline.Handle(context.Background(), ProcessStudentEngagementCommand{StudentID: "alex", SessionID: "s1"})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.MeetingScheduled)
	emails, _ := f.store.Emails().List(context.Background(), notification.EmailFilter{Status: notification.StatusFailed})
	assert.Len(t, emails, 1)
}

func TestProcessStudent_MissingTemplateIsFatal(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 10})

	h := NewProcessStudentEngagementHandler(f.store.Sessions(), notification.NewCatalog(), f.dispatch, f.meetings, nil, nil)
	_, err := h.Handle(context.Background(), ProcessStudentEngagementCommand{StudentID: "alex", SessionID: "s1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrMissingTemplate)
	assert.Equal(t, 0, f.store.EmailCount())
}

func TestProcessStudent_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Handle(context.Background(), ProcessStudentEngagementCommand{SessionID: "s1"})
	assert.True(t, shared.IsValidation(err))
}

func TestProcessStudent_ConcurrentDuplicateRejected(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 10})

	guard := memory.NewRunGuard()
	release, err := guard.Acquire(context.Background(), "alex", "s1")
	require.NoError(t, err)
	defer release()

	h := NewProcessStudentEngagementHandler(f.store.Sessions(), nil, f.dispatch, f.meetings, guard, nil)
	_, err = h.Handle(context.Background(), ProcessStudentEngagementCommand{StudentID: "alex", SessionID: "s1"})
	assert.ErrorIs(t, err, shared.ErrInProgress)
	assert.Equal(t, 0, f.store.EmailCount())
}

func TestProcessStudent_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.pipeline.Handle(ctx, ProcessStudentEngagementCommand{StudentID: "alex", SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, f.store.EmailCount())
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH
// ══════════════════════════════════════════════════════════════════════════════

type flakyProcessor struct {
	inner  StudentProcessor
	failID string
	panics bool
}

func (p flakyProcessor) Handle(ctx context.Context, cmd ProcessStudentEngagementCommand) (*ProcessStudentResult, error) {
	if cmd.StudentID == p.failID {
		if p.panics {
			panic("boom")
		}
		return nil, errors.New("database exploded")
	}
	return p.inner.Handle(ctx, cmd)
}

func TestProcessSession_Isolation(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panics=%v", panics), func(t *testing.T) {
			f := newFixture(t)
			for i := 0; i < 6; i++ {
				f.addStudent(t, fmt.Sprintf("st-%d", i), fmt.Sprintf("Student%d", i), engagement.Metrics{Engagement: 30})
			}

			proc := flakyProcessor{inner: f.pipeline, failID: "st-3", panics: panics}
			h := NewProcessSessionEngagementHandler(f.store.Sessions(), proc, 3, nil)

			res, err := h.Handle(context.Background(), ProcessSessionEngagementCommand{SessionID: "s1"})
			require.NoError(t, err)

			assert.True(t, res.Success)
			assert.Equal(t, 6, res.Processed)
			assert.Equal(t, 1, res.Failed())
			for i, r := range res.Results {
				assert.Equal(t, fmt.Sprintf("st-%d", i), r.StudentID)
				if r.StudentID == "st-3" {
					assert.False(t, r.Success)
					assert.Equal(t, FailureMessage, r.Error)
					continue
				}
				assert.True(t, r.Success)
				assert.Equal(t, string(notification.TypeAtRiskAlert), r.Action)
			}
			assert.Equal(t, 5, f.store.EmailCount())
			assert.Equal(t, 5, f.store.MeetingCount())
		})
	}
}

func TestProcessSession_EmptySession(t *testing.T) {
	f := newFixture(t)
	h := NewProcessSessionEngagementHandler(f.store.Sessions(), f.pipeline, 4, nil)

	res, err := h.Handle(context.Background(), ProcessSessionEngagementCommand{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.NotNil(t, res.Results)
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATE / ENQUEUE
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateStudent(t *testing.T) {
	f := newFixture(t)
	h := NewCreateStudentHandler(f.store.Students())

	s, err := h.Handle(context.Background(), CreateStudentCommand{Name: "Dana", Email: "dana@uni.edu"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	_, err = h.Handle(context.Background(), CreateStudentCommand{Name: "Dana 2", Email: "dana@uni.edu"})
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestEnqueueEmail(t *testing.T) {
	f := newFixture(t)
	f.addStudent(t, "alex", "Alex", engagement.Metrics{Engagement: 90})
	h := NewEnqueueEmailHandler(f.store.Students(), f.store.Emails())

	at := fixedNow.Add(24 * time.Hour)
	out, err := h.Handle(context.Background(), EnqueueEmailCommand{
		StudentID: "alex", Type: notification.TypeReminder, Subject: "Hi", Content: "<p/>", ScheduledFor: &at,
	})
	require.NoError(t, err)
	assert.Equal(t, notification.StatusPending, out.Status)
	assert.Equal(t, notification.PriorityMedium, out.Priority)
	assert.Equal(t, "Alex", out.Student.Name)
	assert.Empty(t, f.sender.sent)

	_, err = h.Handle(context.Background(), EnqueueEmailCommand{StudentID: "ghost", Type: notification.TypeReminder})
	assert.True(t, shared.IsNotFound(err))
}

func TestBindingsFor(t *testing.T) {
	ss := &student.StudentSession{
		Metrics:            engagement.Metrics{Engagement: 45.5, Confusion: 20},
		ConfusionIncidents: 3,
		Student:            &student.Student{Name: "Alex"},
		Session:            &student.ClassSession{Class: student.Class{Subject: "Physics"}, Topic: student.Topic{Name: "QM"}},
	}

	b := BindingsFor(ss)
	assert.Equal(t, "Alex", b[notification.VarStudentName])
	assert.Equal(t, "Physics", b[notification.VarSubject])
	assert.Equal(t, "QM", b[notification.VarTopic])
	assert.Equal(t, "45.5", b[notification.VarEngagement])
	assert.Equal(t, "20", b[notification.VarConfusion])
	assert.Equal(t, "3", b[notification.VarConfusionIncidents])
	_, hasImprovement := b[notification.VarImprovement]
	assert.False(t, hasImprovement)
	_, hasDate := b[notification.VarDate]
	assert.False(t, hasDate)

	ss.Session.StartTime = time.Date(2025, 3, 4, 14, 30, 0, 0, time.UTC)
	b = BindingsFor(ss)
	assert.NotEmpty(t, b[notification.VarDate])
	assert.NotEmpty(t, b[notification.VarTime])
}
