// Package memory - хранилище метрик в памяти процесса.
// Используется в режиме разработки без PostgreSQL и в тестах.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// Store хранит все сущности под одним мьютексом.
type Store struct {
	mu sync.RWMutex

	students     map[string]*student.Student
	studentOrder []string
	classes      map[string]student.Class
	topics       map[string]student.Topic
	sessions     map[string]*student.ClassSession
	metrics      []*student.StudentSession
	emails       []*notification.Email
	meetings     []*meeting.Meeting
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		students: make(map[string]*student.Student),
		classes:  make(map[string]student.Class),
		topics:   make(map[string]student.Topic),
		sessions: make(map[string]*student.ClassSession),
	}
}

// Students возвращает репозиторий студентов.
func (s *Store) Students() student.Repository { return studentRepo{s} }

// Sessions возвращает репозиторий метрик занятий.
func (s *Store) Sessions() student.SessionRepository { return sessionRepo{s} }

// Analytics возвращает репозиторий агрегатов.
func (s *Store) Analytics() student.AnalyticsRepository { return analyticsRepo{s} }

// Emails возвращает репозиторий писем.
func (s *Store) Emails() notification.EmailRepository { return emailRepo{s} }

// Meetings возвращает репозиторий встреч.
func (s *Store) Meetings() meeting.Repository { return meetingRepo{s} }

// Ping всегда успешен. Нужен для health checks.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// Запись справочников и метрик. В продакшене это делает внешний конвейер.
// ══════════════════════════════════════════════════════════════════════════════

// AddClass добавляет курс.
func (s *Store) AddClass(c student.Class) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[c.ID] = c
}

// AddTopic добавляет тему.
func (s *Store) AddTopic(t student.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[t.ID] = t
}

// AddClassSession добавляет занятие. Курс и тема должны существовать.
func (s *Store) AddClassSession(cs student.ClassSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classes[cs.ClassID]; !ok {
		return shared.NewDomainError("student", "AddSession", shared.ErrNotFound, "class not found")
	}
	if _, ok := s.topics[cs.TopicID]; !ok {
		return shared.NewDomainError("student", "AddSession", shared.ErrNotFound, "topic not found")
	}
	s.sessions[cs.ID] = &cs
	return nil
}

// AddStudentSession добавляет метрики студента за занятие.
func (s *Store) AddStudentSession(ss student.StudentSession) error {
	if err := ss.Metrics.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[ss.StudentID]; !ok {
		return shared.ErrStudentNotFound
	}
	if _, ok := s.sessions[ss.SessionID]; !ok {
		return shared.NewDomainError("student", "AddStudentSession", shared.ErrNotFound, "session not found")
	}
	for _, existing := range s.metrics {
		if existing.StudentID == ss.StudentID && existing.SessionID == ss.SessionID {
			return shared.NewDomainError("student", "AddStudentSession", shared.ErrAlreadyExists, "metrics already recorded")
		}
	}
	if ss.CreatedAt.IsZero() {
		ss.CreatedAt = time.Now().UTC()
	}
	ss.Student, ss.Session = nil, nil
	s.metrics = append(s.metrics, &ss)
	return nil
}

// joined возвращает копию записи со студентом, курсом и темой.
// Вызывается под блокировкой.
func (s *Store) joined(ss *student.StudentSession) *student.StudentSession {
	out := *ss
	if st, ok := s.students[ss.StudentID]; ok {
		cp := *st
		out.Student = &cp
	}
	if cs, ok := s.sessions[ss.SessionID]; ok {
		cp := *cs
		cp.Class = s.classes[cs.ClassID]
		cp.Topic = s.topics[cs.TopicID]
		out.Session = &cp
	}
	return &out
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

type studentRepo struct{ s *Store }

func (r studentRepo) Create(_ context.Context, st *student.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[st.ID]; ok {
		return shared.ErrStudentAlreadyExists
	}
	for _, existing := range r.s.students {
		if existing.Email == st.Email {
			return shared.ErrStudentAlreadyExists
		}
	}
	cp := *st
	r.s.students[st.ID] = &cp
	r.s.studentOrder = append(r.s.studentOrder, st.ID)
	return nil
}

func (r studentRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	cp := *st
	return &cp, nil
}

func (r studentRepo) GetByIDs(_ context.Context, ids []string) (map[string]*student.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]*student.Student, len(ids))
	for _, id := range ids {
		if st, ok := r.s.students[id]; ok {
			cp := *st
			out[id] = &cp
		}
	}
	return out, nil
}

func (r studentRepo) List(_ context.Context) ([]*student.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*student.Student, 0, len(r.s.studentOrder))
	for _, id := range r.s.studentOrder {
		cp := *r.s.students[id]
		out = append(out, &cp)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

type sessionRepo struct{ s *Store }

func (r sessionRepo) GetStudentSession(_ context.Context, studentID, sessionID string) (*student.StudentSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, ss := range r.s.metrics {
		if ss.StudentID == studentID && ss.SessionID == sessionID {
			return r.s.joined(ss), nil
		}
	}
	return nil, shared.ErrStudentSessionNotFound
}

func (r sessionRepo) ListBySession(_ context.Context, sessionID string) ([]*student.StudentSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*student.StudentSession
	for _, ss := range r.s.metrics {
		if ss.SessionID == sessionID {
			out = append(out, r.s.joined(ss))
		}
	}
	return out, nil
}

func (r sessionRepo) RecentForStudents(_ context.Context, studentIDs []string, limit int) (map[string][]*student.StudentSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := idSet(studentIDs)
	out := make(map[string][]*student.StudentSession)
	for _, ss := range r.s.metrics {
		if _, ok := want[ss.StudentID]; ok {
			out[ss.StudentID] = append(out[ss.StudentID], r.s.joined(ss))
		}
	}
	for id, list := range out {
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
		out[id] = capSlice(list, limit)
	}
	return out, nil
}

func (r sessionRepo) ListEndedBetween(_ context.Context, from, to time.Time) ([]*student.ClassSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*student.ClassSession
	for _, cs := range r.s.sessions {
		end := cs.EndTime()
		if !end.Before(from) && end.Before(to) {
			cp := *cs
			cp.Class = r.s.classes[cs.ClassID]
			cp.Topic = r.s.topics[cs.TopicID]
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

type analyticsRepo struct{ s *Store }

func (r analyticsRepo) Aggregate(_ context.Context) (student.Aggregate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := len(r.s.metrics)
	agg := student.Aggregate{TotalSessions: n}
	if n == 0 {
		return agg, nil
	}

	var e, d, c, b float64
	for _, ss := range r.s.metrics {
		e += ss.Engagement
		d += ss.Distractedness
		c += ss.Confusion
		b += ss.Boredom
	}
	avg := func(sum float64) *float64 {
		v := sum / float64(n)
		return &v
	}
	agg.AverageEngagement = avg(e)
	agg.AverageDistractedness = avg(d)
	agg.AverageConfusion = avg(c)
	agg.AverageBoredom = avg(b)
	return agg, nil
}

func (r analyticsRepo) AtRisk(_ context.Context, limit int) ([]*student.StudentSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*student.StudentSession
	for _, ss := range r.s.metrics {
		if engagement.IsAtRisk(ss.Metrics) {
			out = append(out, r.s.joined(ss))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Engagement < out[j].Engagement })
	return capSlice(out, limit), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAILS
// ══════════════════════════════════════════════════════════════════════════════

type emailRepo struct{ s *Store }

func (r emailRepo) Create(_ context.Context, e *notification.Email) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[e.StudentID]; !ok {
		return shared.ErrStudentNotFound
	}
	cp := *e
	r.s.emails = append(r.s.emails, &cp)
	return nil
}

func (r emailRepo) List(_ context.Context, filter notification.EmailFilter) ([]*notification.Email, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*notification.Email
	for i := len(r.s.emails) - 1; i >= 0; i-- {
		if e := r.s.emails[i]; filter.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return capSlice(out, filter.Limit), nil
}

func (r emailRepo) RecentForStudents(_ context.Context, studentIDs []string, limit int) (map[string][]*notification.Email, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := idSet(studentIDs)
	out := make(map[string][]*notification.Email)
	for i := len(r.s.emails) - 1; i >= 0; i-- {
		e := r.s.emails[i]
		if _, ok := want[e.StudentID]; ok {
			cp := *e
			out[e.StudentID] = append(out[e.StudentID], &cp)
		}
	}
	for id, list := range out {
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
		out[id] = capSlice(list, limit)
	}
	return out, nil
}

// EmailCount возвращает количество сохранённых писем.
func (s *Store) EmailCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emails)
}

// ══════════════════════════════════════════════════════════════════════════════
// MEETINGS
// ══════════════════════════════════════════════════════════════════════════════

type meetingRepo struct{ s *Store }

func (r meetingRepo) Create(_ context.Context, m *meeting.Meeting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[m.StudentID]; !ok {
		return shared.ErrStudentNotFound
	}
	cp := *m
	r.s.meetings = append(r.s.meetings, &cp)
	return nil
}

func (r meetingRepo) List(_ context.Context, filter meeting.Filter) ([]*meeting.Meeting, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*meeting.Meeting
	for _, m := range r.s.meetings {
		if filter.Status == "" || m.Status == filter.Status {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return capSlice(out, filter.Limit), nil
}

func (r meetingRepo) RecentForStudents(_ context.Context, studentIDs []string, limit int) (map[string][]*meeting.Meeting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := idSet(studentIDs)
	out := make(map[string][]*meeting.Meeting)
	for _, m := range r.s.meetings {
		if _, ok := want[m.StudentID]; ok {
			cp := *m
			out[m.StudentID] = append(out[m.StudentID], &cp)
		}
	}
	for id, list := range out {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ScheduledFor.After(list[j].ScheduledFor) })
		out[id] = capSlice(list, limit)
	}
	return out, nil
}

// MeetingCount возвращает количество сохранённых встреч.
func (s *Store) MeetingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meetings)
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func capSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
