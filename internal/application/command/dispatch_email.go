package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH EMAIL COMMAND
// Sends a rendered email and records the outcome. Every call persists exactly
// one Email record: SENT on success, FAILED on any transport error or timeout.
// ══════════════════════════════════════════════════════════════════════════════

// DispatchEmailCommand contains a rendered email addressed to a student.
type DispatchEmailCommand struct {
	Student  *student.Student
	Type     notification.EmailType
	Subject  string
	Body     string
	Priority notification.Priority
}

// Validate validates the command.
func (c DispatchEmailCommand) Validate() error {
	if c.Student == nil || c.Student.ID == "" {
		return shared.ValidationError("notification", "Dispatch", "student is required")
	}
	if !c.Type.IsValid() {
		return shared.ValidationError("notification", "Dispatch", "invalid email type")
	}
	if !c.Priority.IsValid() {
		return shared.ValidationError("notification", "Dispatch", "invalid priority")
	}
	return nil
}

// DispatchResult is the outcome of one dispatch attempt.
type DispatchResult struct {
	Success bool
	EmailID string
	Status  notification.EmailStatus
}

// DispatchEmailConfig configures the handler.
type DispatchEmailConfig struct {
	// Timeout bounds the transport call. A timeout counts as a failure.
	Timeout time.Duration
}

// DefaultDispatchEmailConfig returns default configuration.
func DefaultDispatchEmailConfig() DispatchEmailConfig {
	return DispatchEmailConfig{Timeout: 15 * time.Second}
}

// DispatchEmailHandler handles the DispatchEmailCommand.
type DispatchEmailHandler struct {
	sender  notification.Sender
	emails  notification.EmailRepository
	timeout time.Duration
	newID   IDFunc
	now     Clock
	log     *logger.Logger
}

// NewDispatchEmailHandler creates a new DispatchEmailHandler.
func NewDispatchEmailHandler(
	sender notification.Sender,
	emails notification.EmailRepository,
	config DispatchEmailConfig,
	log *logger.Logger,
) *DispatchEmailHandler {
	if config.Timeout <= 0 {
		config = DefaultDispatchEmailConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DispatchEmailHandler{
		sender:  sender,
		emails:  emails,
		timeout: config.Timeout,
		newID:   defaultID,
		now:     defaultClock,
		log:     log.With(logger.Component("dispatch")),
	}
}

// WithClock overrides the clock and id generator. Used by tests.
func (h *DispatchEmailHandler) WithClock(now Clock, newID IDFunc) *DispatchEmailHandler {
	if now != nil {
		h.now = now
	}
	if newID != nil {
		h.newID = newID
	}
	return h
}

// Handle sends the email and records the outcome. Transport errors are never
// returned; only validation and persistence errors are.
func (h *DispatchEmailHandler) Handle(ctx context.Context, cmd DispatchEmailCommand) (*DispatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	sendErr := h.send(ctx, cmd)

	params := notification.NewEmailParams{
		ID:        h.newID(),
		StudentID: cmd.Student.ID,
		Type:      cmd.Type,
		Subject:   cmd.Subject,
		Content:   cmd.Body,
		Priority:  cmd.Priority,
		Now:       h.now(),
	}

	var (
		email *notification.Email
		err   error
	)
	if sendErr == nil {
		email, err = notification.NewSentEmail(params)
	} else {
		email, err = notification.NewFailedEmail(params)
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: build record: %w", err)
	}

	if err := h.emails.Create(ctx, email); err != nil {
		return nil, fmt.Errorf("dispatch: save email record: %w", err)
	}

	fields := []logger.Field{
		logger.StudentID(cmd.Student.ID),
		logger.EmailID(email.ID),
		logger.EmailType(string(cmd.Type)),
		logger.Recipient(cmd.Student.Email),
	}
	if sendErr != nil {
		h.log.Warn("email dispatch failed", append(fields, logger.Err(sendErr))...)
	} else {
		h.log.Info("email sent", fields...)
	}

	return &DispatchResult{
		Success: sendErr == nil,
		EmailID: email.ID,
		Status:  email.Status,
	}, nil
}

func (h *DispatchEmailHandler) send(ctx context.Context, cmd DispatchEmailCommand) (err error) {
	if strings.TrimSpace(cmd.Student.Email) == "" {
		return notification.ErrInvalidRecipient
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	// a panicking transport is a transport failure
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()

	if err := h.sender.Send(sendCtx, notification.Message{
		To:       cmd.Student.Email,
		Subject:  cmd.Subject,
		HTMLBody: cmd.Body,
	}); err != nil {
		return shared.WrapError("notification", "Dispatch", shared.ErrExternalService, "email dispatch failed", err)
	}
	return nil
}
