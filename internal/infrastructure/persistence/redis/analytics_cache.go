package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/engagement-agent/internal/application/query"
)

// AnalyticsCache реализует query.AnalyticsCache.
type AnalyticsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewAnalyticsCache создаёт кеш. ttl <= 0 означает TTLAnalytics.
func NewAnalyticsCache(cache *Cache, ttl time.Duration) *AnalyticsCache {
	if ttl <= 0 {
		ttl = TTLAnalytics
	}
	return &AnalyticsCache{cache: cache, ttl: ttl}
}

// GetAnalytics возвращает (nil, nil) при промахе.
func (a *AnalyticsCache) GetAnalytics(ctx context.Context) (*query.EngagementAnalytics, error) {
	var out query.EngagementAnalytics
	if err := a.cache.Get(ctx, AnalyticsKey(), &out); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// SetAnalytics сохраняет результат на ttl.
func (a *AnalyticsCache) SetAnalytics(ctx context.Context, v *query.EngagementAnalytics) error {
	if v == nil {
		return nil
	}
	return a.cache.Set(ctx, AnalyticsKey(), v, a.ttl)
}

var _ query.AnalyticsCache = (*AnalyticsCache)(nil)
