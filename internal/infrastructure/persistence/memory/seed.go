package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/engagement-agent/internal/domain/engagement"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// SeedDemo заполняет хранилище демонстрационными данными: два курса,
// одно занятие на курс и по записи метрик на каждого студента.
// Возвращает ID занятий.
func SeedDemo(s *Store, now time.Time) ([]string, error) {
	s.AddClass(student.Class{ID: "class-physics", Name: "Physics 101", Subject: "Physics"})
	s.AddClass(student.Class{ID: "class-math", Name: "Calculus I", Subject: "Mathematics"})
	s.AddTopic(student.Topic{ID: "topic-qm", Name: "Quantum Mechanics"})
	s.AddTopic(student.Topic{ID: "topic-limits", Name: "Limits and Continuity"})

	sessions := []student.ClassSession{
		{ID: "session-physics-1", ClassID: "class-physics", TopicID: "topic-qm", StartTime: now.Add(-3 * time.Hour), DurationMinutes: 90, ParticipantCount: 3},
		{ID: "session-math-1", ClassID: "class-math", TopicID: "topic-limits", StartTime: now.Add(-26 * time.Hour), DurationMinutes: 60, ParticipantCount: 3},
	}
	for _, cs := range sessions {
		if err := s.AddClassSession(cs); err != nil {
			return nil, fmt.Errorf("seed session %s: %w", cs.ID, err)
		}
	}

	people := []struct {
		id, name, email string
		physics, math   engagement.Metrics
		incidents       int
	}{
		{"student-alex", "Alex", "alex@university.edu",
			engagement.Metrics{Engagement: 45, Distractedness: 30, Confusion: 20, Boredom: 10},
			engagement.Metrics{Engagement: 52, Distractedness: 40, Confusion: 35, Boredom: 20}, 1},
		{"student-maria", "Maria", "maria@university.edu",
			engagement.Metrics{Engagement: 72, Distractedness: 25, Confusion: 68, Boredom: 15},
			engagement.Metrics{Engagement: 81, Distractedness: 10, Confusion: 22, Boredom: 12}, 4},
		{"student-sam", "Sam", "sam@university.edu",
			engagement.Metrics{Engagement: 88, Distractedness: 12, Confusion: 10, Boredom: 5},
			engagement.Metrics{Engagement: 91, Distractedness: 8, Confusion: 6, Boredom: 4}, 0},
	}

	students := s.Students()
	for _, p := range people {
		st, err := student.NewStudent(student.NewStudentParams{ID: p.id, Name: p.name, Email: p.email, Now: now.Add(-30 * 24 * time.Hour)})
		if err != nil {
			return nil, err
		}
		if err := students.Create(context.Background(), st); err != nil {
			return nil, err
		}
		if err := s.AddStudentSession(student.StudentSession{
			ID: p.id + "-math-1", StudentID: p.id, SessionID: "session-math-1",
			Metrics: p.math, ConfusionIncidents: p.incidents / 2, CreatedAt: now.Add(-25 * time.Hour),
		}); err != nil {
			return nil, err
		}
		if err := s.AddStudentSession(student.StudentSession{
			ID: p.id + "-physics-1", StudentID: p.id, SessionID: "session-physics-1",
			Metrics: p.physics, ConfusionIncidents: p.incidents, CreatedAt: now.Add(-90 * time.Minute),
		}); err != nil {
			return nil, err
		}
	}

	return []string{"session-physics-1", "session-math-1"}, nil
}
