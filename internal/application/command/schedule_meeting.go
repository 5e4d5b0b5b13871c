package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE MEETING COMMAND
// Creates a follow-up meeting at a fixed offset from now.
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleMeetingCommand contains the data for a follow-up meeting.
type ScheduleMeetingCommand struct {
	StudentID   string
	Title       string
	Description string
}

// ScheduleMeetingHandler handles the ScheduleMeetingCommand.
type ScheduleMeetingHandler struct {
	meetings meeting.Repository
	newID    IDFunc
	now      Clock
}

// NewScheduleMeetingHandler creates a new ScheduleMeetingHandler.
func NewScheduleMeetingHandler(meetings meeting.Repository) *ScheduleMeetingHandler {
	return &ScheduleMeetingHandler{
		meetings: meetings,
		newID:    defaultID,
		now:      defaultClock,
	}
}

// WithClock overrides the clock and id generator. Used by tests.
func (h *ScheduleMeetingHandler) WithClock(now Clock, newID IDFunc) *ScheduleMeetingHandler {
	if now != nil {
		h.now = now
	}
	if newID != nil {
		h.newID = newID
	}
	return h
}

// Handle creates and stores the meeting.
func (h *ScheduleMeetingHandler) Handle(ctx context.Context, cmd ScheduleMeetingCommand) (*meeting.Meeting, error) {
	m, err := meeting.New(h.newID(), cmd.StudentID, cmd.Title, cmd.Description, h.now())
	if err != nil {
		return nil, err
	}
	if err := h.meetings.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("schedule_meeting: save meeting: %w", err)
	}
	return m, nil
}
