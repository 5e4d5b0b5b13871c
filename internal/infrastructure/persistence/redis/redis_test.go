package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Addr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())

	cfg.Host = "cache"
	cfg.Port = 6380
	assert.Equal(t, "cache:6380", cfg.Addr())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "engagement:analytics:summary", AnalyticsKey())
	assert.Equal(t, "lock:engagement:s-1:sess-1", RunLockKey("s-1", "sess-1"))
	assert.NotEqual(t, RunLockKey("s-1", "sess-2"), RunLockKey("s-1", "sess-1"))
	assert.NotEqual(t, RunLockKey("a:b", "c"), RunLockKey("a", "b:c"))
}

func TestCache_EmptyKey(t *testing.T) {
	c := &Cache{}
	ctx := context.Background()

	assert.True(t, errors.Is(c.Set(ctx, "", 1, 0), ErrCacheKeyEmpty))
	var v int
	assert.True(t, errors.Is(c.Get(ctx, "", &v), ErrCacheKeyEmpty))
	assert.NoError(t, c.Delete(ctx))
}

func TestNewAnalyticsCache_DefaultTTL(t *testing.T) {
	a := NewAnalyticsCache(&Cache{}, 0)
	assert.Equal(t, TTLAnalytics, a.ttl)

	assert.NoError(t, a.SetAnalytics(context.Background(), nil))
}
