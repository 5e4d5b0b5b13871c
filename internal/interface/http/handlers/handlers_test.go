package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/engagement-agent/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)

	auth, err := NewAPIKeyAuth("X-API-Key", []string{string(hash), ""})
	require.NoError(t, err)
	require.True(t, auth.Enabled())
	h := auth.Middleware(okHandler())

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header", "X-API-Key", "secret-key", http.StatusOK},
		{"bearer", "Authorization", "Bearer secret-key", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/emails", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestAPIKeyAuth_DisabledAndInvalidHash(t *testing.T) {
	auth, err := NewAPIKeyAuth("", nil)
	require.NoError(t, err)
	assert.False(t, auth.Enabled())

	rec := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = NewAPIKeyAuth("X-API-Key", []string{"plaintext"})
	assert.Error(t, err)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware("Internal server error")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, rec.Body.String())

	abort := RecoveryMiddleware("x")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(mw("a"), mw("b"))(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, StatusOK, status.Status)

	c.AddCritical("database", func(context.Context) error { return nil })
	c.AddOptional("redis", func(context.Context) error { return errors.New("refused") })

	status = c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, StatusDegraded, status.Status)
	assert.True(t, status.Checks["database"].Healthy)
	assert.True(t, status.Checks["database"].Critical)
	assert.Equal(t, "refused", status.Checks["redis"].Message)
	assert.Equal(t, "Failing checks: redis", status.Message)

	c.AddCritical("database", func(context.Context) error { return errors.New("pool closed") })
	status = c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, StatusDown, status.Status)
	assert.Len(t, status.Checks, 2)
	assert.Equal(t, "Failing checks: database, redis", status.Message)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCritical("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

type fakeCircuit bool

func (f fakeCircuit) IsOpen() bool { return bool(f) }

func TestNewCircuitCheck(t *testing.T) {
	assert.NoError(t, NewCircuitCheck("smtp", fakeCircuit(false))(context.Background()))
	assert.EqualError(t, NewCircuitCheck("smtp", fakeCircuit(true))(context.Background()), "smtp circuit is open")
}
