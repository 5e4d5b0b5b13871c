package notification

import (
	"context"
	"errors"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOUND CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

// Message is what the outbound channel delivers.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers a message through an SMTP-compatible transport.
// Implementations must honour ctx cancellation and deadlines.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

var (
	// ErrDispatchFailed wraps any transport error or timeout.
	ErrDispatchFailed = shared.NewDomainError("notification", "Dispatch", shared.ErrExternalService, "email dispatch failed")

	// ErrInvalidRecipient - the student has no usable address.
	ErrInvalidRecipient = errors.New("notification: invalid recipient address")
)
