// Package http exposes the engagement agent over REST: student and email
// listings, manual email enqueueing, analytics, pipeline triggers, the
// template catalog, and health checks.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/alem-hub/engagement-agent/internal/application/command"
	"github.com/alem-hub/engagement-agent/internal/application/query"
	"github.com/alem-hub/engagement-agent/internal/interface/http/handlers"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// APIKeyHeader - header name for API key authentication.
	APIKeyHeader string

	// APIKeyHashes - bcrypt hashes of keys accepted on mutating endpoints.
	// Empty disables authentication.
	APIKeyHashes []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   120 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
		APIKeyHeader:   "X-API-Key",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Query Handlers (CQRS Read Side)
	ListStudents *query.ListStudentsHandler
	ListEmails   *query.ListEmailsHandler
	ListMeetings *query.ListMeetingsHandler
	Analytics    *query.GetEngagementAnalyticsHandler
	Templates    *query.TemplatesHandler

	// Command Handlers (CQRS Write Side)
	CreateStudent  *command.CreateStudentHandler
	EnqueueEmail   *command.EnqueueEmailHandler
	ProcessStudent *command.ProcessStudentEngagementHandler
	ProcessSession *command.ProcessSessionEngagementHandler

	HealthChecker handlers.HealthChecker
	Logger        *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	auth       *handlers.APIKeyAuth
	log        *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewNoopHealthChecker()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	auth, err := handlers.NewAPIKeyAuth(config.APIKeyHeader, config.APIKeyHashes)
	if err != nil {
		return nil, fmt.Errorf("http: api key hashes: %w", err)
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: mux.NewRouter(),
		auth:   auth,
		log:    deps.Logger.With(logger.Component("http")),
	}
	s.setupRoutes()
	s.handler = s.buildMiddlewareChain(s.router)

	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)

	// ─────────────────────────────────────────────────────────────────────────
	// Read endpoints
	// ─────────────────────────────────────────────────────────────────────────
	r.HandleFunc("/students", s.handleListStudents).Methods(http.MethodGet)
	r.HandleFunc("/emails", s.handleListEmails).Methods(http.MethodGet)
	r.HandleFunc("/meetings", s.handleListMeetings).Methods(http.MethodGet)
	r.HandleFunc("/engagement/analytics", s.handleAnalytics).Methods(http.MethodGet)
	r.HandleFunc("/templates", s.handleListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/templates/{id}/preview", s.handlePreviewTemplate).Methods(http.MethodPost)

	// ─────────────────────────────────────────────────────────────────────────
	// Mutating endpoints (API key when configured)
	// ─────────────────────────────────────────────────────────────────────────
	r.Handle("/students", s.auth.Middleware(http.HandlerFunc(s.handleCreateStudent))).Methods(http.MethodPost)
	r.Handle("/emails", s.auth.Middleware(http.HandlerFunc(s.handleCreateEmail))).Methods(http.MethodPost)
	r.Handle("/engagement/process", s.auth.Middleware(http.HandlerFunc(s.handleProcess))).Methods(http.MethodPost)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) buildMiddlewareChain(h http.Handler) http.Handler {
	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins(s.config.AllowedOrigins),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Authorization", s.auth.HeaderName(), handlers.RequestIDHeader}),
		ghandlers.ExposedHeaders([]string{handlers.RequestIDHeader}),
	)
	return handlers.Chain(
		handlers.MiddlewareFunc(cors),
		handlers.RequestIDMiddleware(s.log),
		handlers.LoggingMiddleware(s.log),
		handlers.RecoveryMiddleware(InternalErrorMessage),
		handlers.SecurityHeadersMiddleware,
		handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes),
	)(h)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
