package smtp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/pkg/circuitbreaker"
)

func newTestClient(t *testing.T, send func(ctx context.Context, m *mail.Msg) error) *Client {
	t.Helper()
	cfg := DefaultClientConfig("smtp.example.test")
	cfg.BreakerThreshold = 2
	cfg.BreakerTimeout = time.Hour

	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	c.send = send
	return c
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(ClientConfig{}, nil)
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(ClientConfig{Host: "relay", Port: 25}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFrom, c.cfg.From)
	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())
}

func TestClient_Send_BuildsMessage(t *testing.T) {
	var got *mail.Msg
	c := newTestClient(t, func(_ context.Context, m *mail.Msg) error {
		got = m
		return nil
	})

	err := c.Send(context.Background(), notification.Message{
		To:       "alex@example.com",
		Subject:  "Hello",
		HTMLBody: "<p>hi</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"Hello"}, got.GetGenHeader(mail.HeaderSubject))
	to := got.GetToString()
	require.Len(t, to, 1)
	assert.Contains(t, to[0], "alex@example.com")
}

func TestClient_Send_InvalidRecipient(t *testing.T) {
	called := false
	c := newTestClient(t, func(context.Context, *mail.Msg) error {
		called = true
		return nil
	})

	err := c.Send(context.Background(), notification.Message{To: " "})
	assert.True(t, errors.Is(err, notification.ErrInvalidRecipient))

	err = c.Send(context.Background(), notification.Message{To: "not an address"})
	assert.True(t, errors.Is(err, notification.ErrInvalidRecipient))
	assert.False(t, called)
}

func TestClient_Send_BreakerOpens(t *testing.T) {
	relayErr := errors.New("connection refused")
	calls := 0
	c := newTestClient(t, func(context.Context, *mail.Msg) error {
		calls++
		return relayErr
	})
	msg := notification.Message{To: "a@example.com", Subject: "s", HTMLBody: "b"}

	for i := 0; i < 2; i++ {
		err := c.Send(context.Background(), msg)
		assert.True(t, errors.Is(err, relayErr))
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	err := c.Send(context.Background(), msg)
	assert.True(t, errors.Is(err, circuitbreaker.ErrCircuitOpen))
	assert.Equal(t, 2, calls)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(nil)
	assert.NoError(t, s.Send(context.Background(), notification.Message{To: "a@example.com"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Send(ctx, notification.Message{To: "a@example.com"}))
}
