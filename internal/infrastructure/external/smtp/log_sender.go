package smtp

import (
	"context"

	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// LogSender writes messages to the log instead of a relay. Used when no
// SMTP host is configured.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log *logger.Logger) *LogSender {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSender{log: log.With(logger.Component("smtp-log"))}
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, msg notification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("email (log transport)",
		logger.Recipient(msg.To),
		logger.String("subject", msg.Subject),
		logger.Int("body_bytes", len(msg.HTMLBody)))
	return nil
}

var _ notification.Sender = (*LogSender)(nil)
