package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"fatal":   LevelFatal,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Format: "json"})

	log.With(Component("agent")).Info("processed",
		StudentID("s-1"),
		SessionID("sess-1"),
		Err(errors.New("smtp down")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "processed", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "agent", entry["component"])
	assert.Equal(t, "s-1", entry["student_id"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "smtp down", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).WithRequestID("req-1")

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.NotNil(t, FromContext(context.Background()))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("discarded", Any("k", 1))
	})
}

func TestFields_Encoding(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, AddCaller: false})

	log.Info("dispatch", Latency(1500*time.Millisecond), Err(nil), Bool("sent", true), Int("attempt", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "1.5s", entry["latency"])
	assert.Equal(t, true, entry["sent"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.NotContains(t, entry, "error")
	assert.NotContains(t, entry, "caller")
}
