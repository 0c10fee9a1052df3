package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
)

var _ cache.Locker = (*Locker)(nil)

// 只有持有者本人才能释放锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX PX 的分布式建议锁
type Locker struct {
	rdb    *goredis.Client
	prefix string
	log    *zap.Logger
}

// NewLocker 创建 Redis 锁
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{rdb: client.Client(), prefix: prefix, log: client.log}
}

// TryLock 尝试获取锁，不阻塞
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// 调用方的 ctx 可能已取消，释放使用独立的超时
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{fullKey}, token).Err(); err != nil {
			l.log.Warn("failed to release lock", zap.String("key", fullKey), zap.Error(err))
		}
	}
	return release, true, nil
}
