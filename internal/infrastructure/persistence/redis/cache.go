// Package redis реализует кеш аналитики и распределённую блокировку
// прогонов агента поверх Redis.
//
// Компоненты:
//   - Cache: JSON-кеш с TTL
//   - AnalyticsCache: кеш сводной аналитики вовлечённости
//   - RunGuard: блокировка пары (student, session) на время прогона
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config содержит параметры подключения к Redis.
type Config struct {
	// Host - хост сервера Redis.
	Host string

	// Port - порт сервера Redis.
	Port int

	// Password - пароль (пустой, если без аутентификации).
	Password string

	// DB - номер базы (0-15).
	DB int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr возвращает адрес в формате "host:port".
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS & KEYS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss - ключ не найден.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection - Redis недоступен.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization - ошибка (де)сериализации.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty - пустой ключ.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// Префиксы ключей.
const (
	PrefixAnalytics = "engagement:analytics:"
	PrefixLock      = "lock:engagement:"
)

// Default TTLs.
const (
	TTLAnalytics       = 30 * time.Second
	TTLDistributedLock = 2 * time.Minute
)

// AnalyticsKey - ключ сводной аналитики.
func AnalyticsKey() string {
	return PrefixAnalytics + "summary"
}

// RunLockKey - ключ блокировки прогона для пары (student, session).
// Идентификаторы экранируются, чтобы ':' внутри них не склеивал разные пары.
func RunLockKey(studentID, sessionID string) string {
	return PrefixLock + url.QueryEscape(studentID) + ":" + url.QueryEscape(sessionID)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache - JSON-кеш поверх go-redis.
type Cache struct {
	client redis.UniversalClient
}

// NewCache подключается к Redis и проверяет соединение.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return &Cache{client: client}, nil
}

// NewCacheWithClient оборачивает готовый клиент.
func NewCacheWithClient(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Client возвращает клиент go-redis.
func (c *Cache) Client() redis.UniversalClient {
	return c.client
}

// Close закрывает соединение.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping проверяет доступность Redis.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// Set сериализует value в JSON и сохраняет с TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get читает JSON по ключу в dest. Возвращает ErrCacheMiss, если ключа нет.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Delete удаляет ключи.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
