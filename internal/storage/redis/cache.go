package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mailflow/backend/internal/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache 基于 Redis 的键值缓存，多个进程（服务端与命令行）共享同一份缓存
type Cache struct {
	rdb    *goredis.Client
	prefix string
}

// NewCache 创建 Redis 缓存，所有键自动加上 prefix
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{rdb: client.Client(), prefix: prefix}
}

// Get 获取缓存值
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set 设置缓存值
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete 删除缓存值
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.rdb.Del(ctx, full...).Err()
}
