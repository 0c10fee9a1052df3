package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailflow/backend/internal/config"
	"mailflow/backend/internal/monitoring"
)

// Pool 原生 pgx 连接池
//
// gorm 存储之外单独维护一个小连接池，承担就绪探测，并向
// mailflow_pool_connections 报告连接占用情况。
type Pool struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// poolConfig 把数据库配置转换为 pgxpool 配置
func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 && cfg.MaxIdleConns <= cfg.MaxOpenConns {
		pc.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pc.MaxConnIdleTime = 30 * time.Minute
	return pc, nil
}

// OpenPool 建立连接池并确认数据库可达
func OpenPool(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("pgx pool ready",
		zap.Int32("max_conns", pc.MaxConns),
		zap.Int32("min_conns", pc.MinConns))
	return &Pool{pool: pool, log: log}, nil
}

// Ping 就绪检查
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// PoolStats 当前连接池快照
func (p *Pool) PoolStats() monitoring.PoolStats {
	st := p.pool.Stat()
	return monitoring.PoolStats{
		Total: int(st.TotalConns()),
		Idle:  int(st.IdleConns()),
		InUse: int(st.AcquiredConns()),
	}
}

func (p *Pool) Close() {
	p.pool.Close()
	p.log.Debug("pgx pool closed")
}
