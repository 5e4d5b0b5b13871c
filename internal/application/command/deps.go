// Package command contains write operations (CQRS - Commands) of the
// engagement agent.
package command

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// IDFunc generates identifiers for new records.
type IDFunc func() string

// Clock returns the current time.
type Clock func() time.Time

func defaultID() string { return uuid.NewString() }

func defaultClock() time.Time { return time.Now().UTC() }

// formatScore renders a metric the way it appears in email bodies:
// shortest representation, no trailing zeros.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BindingsFor builds template bindings from a joined StudentSession.
// "improvement" needs history and is left unbound.
func BindingsFor(ss *student.StudentSession) notification.Bindings {
	b := notification.Bindings{
		notification.VarSubject:            ss.Subject(),
		notification.VarTopic:              ss.TopicName(),
		notification.VarEngagement:         formatScore(ss.Engagement),
		notification.VarConfusion:          formatScore(ss.Confusion),
		notification.VarConfusionIncidents: strconv.Itoa(ss.ConfusionIncidents),
	}
	if ss.Student != nil {
		b[notification.VarStudentName] = ss.Student.Name
	}
	if ss.Session != nil && !ss.Session.StartTime.IsZero() {
		b[notification.VarDate] = timeutil.FormatDate(ss.Session.StartTime)
		b[notification.VarTime] = timeutil.FormatClock(ss.Session.StartTime)
	}
	return b
}
