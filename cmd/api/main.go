// Package main - точка входа HTTP API агента вовлечённости студентов.
//
// API отдаёт списки студентов, писем и встреч, аналитику, каталог шаблонов
// и запускает конвейер агента для одного студента или всего занятия.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/engagement-agent/config"
	"github.com/alem-hub/engagement-agent/internal/app"
	"github.com/alem-hub/engagement-agent/internal/application/command"
	httpserver "github.com/alem-hub/engagement-agent/internal/interface/http"
	"github.com/alem-hub/engagement-agent/pkg/logger"
	"github.com/alem-hub/engagement-agent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewLogger(cfg).With(logger.String("app", cfg.App.Name))
	defer func() { _ = log.Sync() }()

	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	log.Info("starting engagement agent API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ И КЕШ
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		stores.Close()
	}()

	cache, err := app.OpenCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	if cache != nil {
		defer func() { _ = cache.Close() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	agent, err := app.NewAgent(cfg, stores, cache, log)
	if err != nil {
		return err
	}
	queries := app.NewQueries(cfg, stores, agent.Catalog, cache, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		APIKeyHeader:   cfg.HTTP.APIKeyHeader,
		APIKeyHashes:   cfg.HTTP.APIKeyHashes,
	}
	if len(httpConfig.APIKeyHashes) == 0 {
		log.Warn("no API key hashes configured, mutating endpoints are open")
	}

	server, err := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		ListStudents:   queries.ListStudents,
		ListEmails:     queries.ListEmails,
		ListMeetings:   queries.ListMeetings,
		Analytics:      queries.Analytics,
		Templates:      queries.Templates,
		CreateStudent:  command.NewCreateStudentHandler(stores.Students),
		EnqueueEmail:   command.NewEnqueueEmailHandler(stores.Students, stores.Emails),
		ProcessStudent: agent.ProcessStudent,
		ProcessSession: agent.ProcessSession,
		HealthChecker:  app.NewHealthChecker(cfg, stores, cache, agent),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := server.StartAsync()
	log.Info("engagement agent API is running", logger.String("address", httpConfig.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", logger.Err(err))
			return err
		}
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}
