package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
)

// listCache 按用户缓存列表结果
//
// 拥有 read_all 的用户看到的是全量数据，不走缓存。
type listCache struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func newListCache(c cache.Cache, ttl time.Duration, logger *zap.Logger) *listCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &listCache{cache: c, ttl: ttl, logger: logger}
}

func cachedList[T any](ctx context.Context, lc *listCache, actor *domain.User, key func(string) string, load func(ownerID string) ([]T, error)) ([]T, error) {
	caps := actor.Capabilities()
	if len(caps) == 0 {
		return nil, domain.ErrForbidden
	}
	if caps.Has(domain.CapReadAll) {
		return load("")
	}

	k := key(actor.ID)
	if lc != nil && lc.cache != nil {
		var items []T
		ok, err := cache.GetJSON(ctx, lc.cache, k, &items)
		if err != nil {
			lc.logger.Warn("cache read failed", zap.String("key", k), zap.Error(err))
		}
		if ok {
			return items, nil
		}
	}

	items, err := load(actor.ID)
	if err != nil {
		return nil, err
	}
	if lc != nil && lc.cache != nil {
		if err := cache.SetJSON(ctx, lc.cache, k, items, lc.ttl); err != nil {
			lc.logger.Warn("cache write failed", zap.String("key", k), zap.Error(err))
		}
	}
	return items, nil
}
