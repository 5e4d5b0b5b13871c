// Package app собирает зависимости агента из конфигурации. Используется
// обеими точками входа: cmd/api и cmd/worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alem-hub/engagement-agent/config"
	"github.com/alem-hub/engagement-agent/internal/application/command"
	"github.com/alem-hub/engagement-agent/internal/application/query"
	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/external/smtp"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/engagement-agent/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/engagement-agent/internal/interface/http/handlers"
	"github.com/alem-hub/engagement-agent/pkg/logger"
	"github.com/alem-hub/engagement-agent/pkg/retry"
)

// NewLogger настраивает структурированное логирование по конфигурации.
func NewLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug && level > logger.LevelDebug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    cfg.Observability.LogFormat,
		AddCaller: !cfg.IsProduction(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ХРАНИЛИЩЕ
// ══════════════════════════════════════════════════════════════════════════════

// Stores - набор репозиториев одного бэкенда.
type Stores struct {
	Students  student.Repository
	Sessions  student.SessionRepository
	Analytics student.AnalyticsRepository
	Emails    notification.EmailRepository
	Meetings  meeting.Repository

	// Ping проверяет доступность бэкенда.
	Ping func(ctx context.Context) error

	// Close освобождает соединения. Безопасен для повторного вызова.
	Close func()

	// InMemory - true, если Postgres не настроен.
	InMemory bool
}

// OpenStores подключается к Postgres и применяет миграции. Без DATABASE_URL
// возвращает хранилище в памяти, при необходимости с демо-данными.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	if !cfg.UsesDatabase() {
		store := memory.NewStore()
		if cfg.App.SeedDemo {
			ids, err := memory.SeedDemo(store, time.Now().UTC())
			if err != nil {
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
			log.Info("demo data seeded", logger.Int("sessions", len(ids)))
		}
		log.Warn("DATABASE_URL not set, using in-memory store")
		return &Stores{
			Students:  store.Students(),
			Sessions:  store.Sessions(),
			Analytics: store.Analytics(),
			Emails:    store.Emails(),
			Meetings:  store.Meetings(),
			Ping:      store.Ping,
			Close:     func() {},
			InMemory:  true,
		}, nil
	}

	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = int32(cfg.Database.MaxConns)
	opts.MinConns = int32(cfg.Database.MinConns)
	opts.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	opts.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	retrier := retry.ConnectRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("database not reachable, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})

	log.Info("connecting to database...")
	conn, err := postgres.Open(ctx, cfg.Database.URL, opts, retrier)
	if err != nil {
		return nil, err
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
		}
	}

	sessions := postgres.NewSessionRepository(conn)
	return &Stores{
		Students:  postgres.NewStudentRepository(conn),
		Sessions:  sessions,
		Analytics: sessions,
		Emails:    postgres.NewEmailRepository(conn),
		Meetings:  postgres.NewMeetingRepository(conn),
		Ping:      conn.Ping,
		Close:     conn.Close,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS
// ══════════════════════════════════════════════════════════════════════════════

// OpenCache подключается к Redis. Возвращает (nil, nil), если Redis
// отключён или недоступен: агент продолжает работу без кеша и с
// блокировками в памяти процесса.
func OpenCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	if cfg.Redis.Disabled {
		log.Info("redis disabled")
		return nil, nil
	}

	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout

	cache, err := redis.NewCache(ctx, rc)
	if err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return nil, nil
	}
	log.Info("Redis connection established", logger.String("addr", rc.Addr()))
	return cache, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// АГЕНТ
// ══════════════════════════════════════════════════════════════════════════════

// Agent - собранный конвейер обработки вовлечённости.
type Agent struct {
	Catalog        *notification.Catalog
	ProcessStudent *command.ProcessStudentEngagementHandler
	ProcessSession *command.ProcessSessionEngagementHandler

	// SMTP - nil, если письма только логируются.
	SMTP *smtp.Client
}

// NewSender выбирает канал отправки: SMTP при заданном SMTP_HOST, иначе лог.
func NewSender(cfg *config.Config, log *logger.Logger) (notification.Sender, *smtp.Client, error) {
	if cfg.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		return smtp.NewLogSender(log), nil, nil
	}

	sc := smtp.DefaultClientConfig(cfg.SMTP.Host)
	sc.Port = cfg.SMTP.Port
	sc.Username = cfg.SMTP.Username
	sc.Password = cfg.SMTP.Password
	sc.From = cfg.SMTP.From
	sc.Secure = cfg.SMTP.Secure
	sc.Timeout = cfg.SMTP.Timeout
	sc.BreakerThreshold = cfg.SMTP.BreakerThreshold
	sc.BreakerTimeout = cfg.SMTP.BreakerTimeout

	client, err := smtp.NewClient(sc, log)
	if err != nil {
		return nil, nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, client, nil
}

// NewAgent собирает конвейер. cache может быть nil.
func NewAgent(cfg *config.Config, stores *Stores, cache *redis.Cache, log *logger.Logger) (*Agent, error) {
	sender, smtpClient, err := NewSender(cfg, log)
	if err != nil {
		return nil, err
	}

	var guard command.RunGuard = memory.NewRunGuard()
	if cache != nil {
		guard = redis.NewRunGuard(cache, cfg.Agent.RunLockTTL)
	}

	catalog := notification.DefaultCatalog()
	dispatcher := command.NewDispatchEmailHandler(
		sender,
		stores.Emails,
		command.DispatchEmailConfig{Timeout: cfg.Agent.DispatchTimeout},
		log,
	)
	processStudent := command.NewProcessStudentEngagementHandler(
		stores.Sessions,
		catalog,
		dispatcher,
		command.NewScheduleMeetingHandler(stores.Meetings),
		guard,
		log,
	)

	return &Agent{
		Catalog:        catalog,
		ProcessStudent: processStudent,
		ProcessSession: command.NewProcessSessionEngagementHandler(stores.Sessions, processStudent, cfg.Agent.BatchConcurrency, log),
		SMTP:           smtpClient,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ЗАПРОСЫ И HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Queries - обработчики чтения для HTTP слоя.
type Queries struct {
	ListStudents *query.ListStudentsHandler
	ListEmails   *query.ListEmailsHandler
	ListMeetings *query.ListMeetingsHandler
	Analytics    *query.GetEngagementAnalyticsHandler
	Templates    *query.TemplatesHandler
}

// NewQueries собирает обработчики чтения. cache может быть nil.
func NewQueries(cfg *config.Config, stores *Stores, catalog *notification.Catalog, cache *redis.Cache, log *logger.Logger) Queries {
	var analyticsCache query.AnalyticsCache
	if cache != nil {
		analyticsCache = redis.NewAnalyticsCache(cache, cfg.Redis.AnalyticsTTL)
	}

	return Queries{
		ListStudents: query.NewListStudentsHandler(stores.Students, stores.Sessions, stores.Emails, stores.Meetings),
		ListEmails:   query.NewListEmailsHandler(stores.Emails, stores.Students),
		ListMeetings: query.NewListMeetingsHandler(stores.Meetings, stores.Students),
		Analytics:    query.NewGetEngagementAnalyticsHandler(stores.Analytics, analyticsCache, log),
		Templates:    query.NewTemplatesHandler(catalog),
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// NewHealthChecker регистрирует проверки. Без базы сервис не работает;
// Redis и SMTP breaker только переводят его в состояние degraded: агент
// продолжает работу без кеша, а письма при открытом breaker пишутся как FAILED.
func NewHealthChecker(cfg *config.Config, stores *Stores, cache *redis.Cache, agent *Agent) *handlers.CompositeHealthChecker {
	hc := handlers.NewCompositeHealthChecker(cfg.App.Version)
	hc.AddCritical("database", handlers.NewPingCheck(pingFunc(stores.Ping)))
	if cache != nil {
		hc.AddOptional("redis", handlers.NewPingCheck(cache))
	}
	if agent != nil && agent.SMTP != nil {
		hc.AddOptional("smtp", handlers.NewCircuitCheck("smtp", agent.SMTP))
	}
	return hc
}

// ErrDatabaseRequired возвращается процессами, которым нужно общее хранилище.
var ErrDatabaseRequired = errors.New("DATABASE_URL is required")
