// Package cache 提供键值缓存抽象、缓存键派生和统一的失效入口。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheFull 本地缓存容量已满
var ErrCacheFull = errors.New("cache is full")

// Cache 键值缓存
//
// 实现：LocalCache（进程内）、storage/redis.Cache（Redis）。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GetJSON 读取并反序列化缓存值；未命中或值损坏都返回 false
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON 序列化后写入缓存
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
