// Package timeutil formats timestamps for email bodies in the institution's
// local timezone. No external dependencies.
package timeutil

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Layouts used in email bodies.
const (
	DateLayout  = "Monday, January 2, 2006"
	ClockLayout = "3:04 PM"
)

var location atomic.Pointer[time.Location]

func init() {
	location.Store(time.UTC)
}

// SetLocation sets the display timezone by IANA name ("" means UTC).
func SetLocation(name string) error {
	if name == "" {
		location.Store(time.UTC)
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("timeutil: load location %q: %w", name, err)
	}
	location.Store(loc)
	return nil
}

// Location returns the display timezone.
func Location() *time.Location {
	return location.Load()
}

// Local converts t to the display timezone.
func Local(t time.Time) time.Time {
	return t.In(Location())
}

// FormatDate renders the calendar date, e.g. "Tuesday, March 4, 2025".
func FormatDate(t time.Time) string {
	return Local(t).Format(DateLayout)
}

// FormatClock renders the wall-clock time, e.g. "2:30 PM".
func FormatClock(t time.Time) string {
	return Local(t).Format(ClockLayout)
}

// DaysSince returns whole days between t and now, never negative.
func DaysSince(t, now time.Time) int {
	if now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}
