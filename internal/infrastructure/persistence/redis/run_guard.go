package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunGuard - распределённая блокировка пары (student, session).
// Ключ живёт не дольше ttl, поэтому упавший процесс не держит пару вечно.
type RunGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRunGuard создаёт блокировку. ttl <= 0 означает TTLDistributedLock.
func NewRunGuard(cache *Cache, ttl time.Duration) *RunGuard {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	return &RunGuard{client: cache.Client(), ttl: ttl}
}

// Acquire захватывает пару через SET NX PX или возвращает shared.ErrRunInProgress.
func (g *RunGuard) Acquire(ctx context.Context, studentID, sessionID string) (func(), error) {
	key := RunLockKey(studentID, sessionID)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, shared.WrapError("engagement", "Acquire", shared.ErrServiceUnavailable, "run guard unavailable", err)
	}
	if !ok {
		return nil, shared.ErrRunInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err()
		})
	}, nil
}
