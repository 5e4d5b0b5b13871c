// Package smtp delivers agent emails through an SMTP relay.
// Every send goes through a circuit breaker so a dead relay fails fast
// instead of holding pipeline workers until the dispatch timeout.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/pkg/circuitbreaker"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultFrom is used when no sender address is configured.
const DefaultFrom = "noreply@university.edu"

// ClientConfig contains configuration for the SMTP client.
type ClientConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Secure uses implicit TLS instead of opportunistic STARTTLS.
	Secure bool

	// Timeout bounds a single dial-and-send.
	Timeout time.Duration

	// BreakerThreshold is the number of consecutive failures that opens the circuit.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(host string) ClientConfig {
	return ClientConfig{
		Host:             host,
		Port:             587,
		From:             DefaultFrom,
		Timeout:          10 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

func (c ClientConfig) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(c.Port),
		mail.WithTimeout(c.Timeout),
	}
	if c.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if c.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.Username),
			mail.WithPassword(c.Password),
		)
	}
	return opts
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements notification.Sender on top of go-mail.
type Client struct {
	cfg     ClientConfig
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger

	// send is replaced in tests.
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewClient validates config and builds a client. No connection is made
// until the first Send.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp: host is required")
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("smtp"))

	// Build the options once so misconfiguration surfaces at startup.
	if _, err := mail.NewClient(cfg.Host, cfg.options()...); err != nil {
		return nil, fmt.Errorf("smtp: invalid client options: %w", err)
	}

	c := &Client{cfg: cfg, log: log}
	c.breaker = circuitbreaker.SMTPBreaker(cfg.BreakerThreshold, cfg.BreakerTimeout,
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		})
	c.send = c.dialAndSend
	return c, nil
}

// Send builds the MIME message and delivers it through the breaker.
func (c *Client) Send(ctx context.Context, msg notification.Message) error {
	m, err := c.buildMessage(msg)
	if err != nil {
		return err
	}

	start := time.Now()
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.send(ctx, m)
	})
	if err != nil {
		c.log.Warn("smtp send failed",
			logger.Recipient(msg.To),
			logger.Latency(time.Since(start)),
			logger.Err(err))
		return fmt.Errorf("smtp: send to %s: %w", msg.To, err)
	}

	c.log.Debug("smtp send ok", logger.Recipient(msg.To), logger.Latency(time.Since(start)))
	return nil
}

// BreakerState exposes the breaker state for readiness checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// IsOpen reports whether sends are currently short-circuited.
func (c *Client) IsOpen() bool {
	return c.breaker.IsOpen()
}

func (c *Client) buildMessage(msg notification.Message) (*mail.Msg, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, notification.ErrInvalidRecipient
	}

	m := mail.NewMsg()
	if err := m.From(c.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp: from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: %v", notification.ErrInvalidRecipient, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	return m, nil
}

func (c *Client) dialAndSend(ctx context.Context, m *mail.Msg) error {
	client, err := mail.NewClient(c.cfg.Host, c.cfg.options()...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, m)
}

var _ notification.Sender = (*Client)(nil)
