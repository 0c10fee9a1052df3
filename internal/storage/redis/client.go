package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailflow/backend/internal/config"
	"mailflow/backend/internal/monitoring"
)

// Client 缓存与发送锁共用的 Redis 连接
type Client struct {
	rdb *goredis.Client
	log *zap.Logger
}

func options(cfg *config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// Dial 连接 Redis，ctx 限定首次 PING 的等待时间
func Dial(ctx context.Context, cfg *config.RedisConfig, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rdb := goredis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Address, err)
	}

	log.Info("redis ready", zap.String("address", cfg.Address), zap.Int("db", cfg.DB))
	return &Client{rdb: rdb, log: log}, nil
}

// Client 返回底层的 go-redis 客户端
func (c *Client) Client() *goredis.Client {
	return c.rdb
}

// Ping 就绪检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PoolStats 当前连接池快照；go-redis 不单独统计占用数，按总数减空闲计算
func (c *Client) PoolStats() monitoring.PoolStats {
	st := c.rdb.PoolStats()
	total, idle := int(st.TotalConns), int(st.IdleConns)
	return monitoring.PoolStats{Total: total, Idle: idle, InUse: max(total-idle, 0)}
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		c.log.Warn("failed to close redis client", zap.Error(err))
		return err
	}
	return nil
}
