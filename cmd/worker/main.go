// Package main - точка входа фонового процесса (Worker) агента вовлечённости.
//
// Worker по расписанию находит завершившиеся занятия и запускает для каждого
// пакетную обработку всех студентов. Нужен общий Postgres: хранилище в
// памяти процесса API воркеру недоступно.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/engagement-agent/config"
	"github.com/alem-hub/engagement-agent/internal/app"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/scheduler"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/scheduler/jobs"
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
	if !cfg.UsesDatabase() {
		return app.ErrDatabaseRequired
	}
	if !cfg.Worker.Enabled {
		return errors.New("worker is disabled (WORKER_ENABLED=false)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewLogger(cfg).With(logger.String("app", cfg.App.Name+"-worker"))
	defer func() { _ = log.Sync() }()

	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	log.Info("starting engagement agent worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("schedule", cfg.Worker.Schedule),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ, КЕШ, АГЕНТ
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		stores.Close()
	}()

	// Redis делит блокировки прогонов с процессом API.
	cache, err := app.OpenCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	if cache != nil {
		defer func() { _ = cache.Close() }()
	}

	agent, err := app.NewAgent(cfg, stores, cache, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	sweep := jobs.NewProcessEndedSessionsJob(
		stores.Sessions,
		agent.ProcessSession,
		jobs.ProcessEndedSessionsConfig{
			Window:  cfg.Worker.SweepWindow,
			Timeout: cfg.Worker.JobTimeout,
		},
		log,
	)
	if err := sched.Register(sweep, cfg.Worker.Schedule); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}

	sched.OnJobComplete(func(result scheduler.JobResult) {
		stats := sweep.LastStats()
		log.Info("sweep summary",
			logger.Bool("success", result.Success),
			logger.Int("sessions_found", stats.SessionsFound),
			logger.Int("sessions_processed", stats.SessionsProcessed),
			logger.Int("students_processed", stats.StudentsProcessed),
			logger.Int("students_failed", stats.StudentsFailed),
		)
	})

	// Догоняющий прогон: сессии, закончившиеся пока воркер был остановлен.
	// Ошибка не фатальна, следующий тик cron повторит обход.
	if cfg.Worker.RunOnStart {
		if _, err := sched.RunNow(ctx, sweep.Name()); err != nil {
			log.Warn("startup sweep failed", logger.Err(err))
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	for _, job := range sched.ListJobs() {
		log.Info("job scheduled",
			logger.String("job", job.Name),
			logger.String("description", job.Description),
			logger.String("next_run", job.NextRun.Format(time.RFC3339)),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("engagement agent worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("scheduler did not stop in time", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}
