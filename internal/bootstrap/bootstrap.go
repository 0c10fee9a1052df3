// Package bootstrap 根据配置组装存储、缓存、邮件通道和服务层，
// 供 HTTP 服务与命令行工具共用。
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mailflow/backend/internal/auth"
	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/config"
	"mailflow/backend/internal/health"
	"mailflow/backend/internal/mail"
	"mailflow/backend/internal/monitoring"
	"mailflow/backend/internal/service"
	"mailflow/backend/internal/storage"
	"mailflow/backend/internal/storage/memory"
	"mailflow/backend/internal/storage/postgres"
	"mailflow/backend/internal/storage/redis"
)

// 缓存与锁在 Redis 中的键前缀
const redisPrefix = "mailflow:"

// App 组装完成的应用组件
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   storage.Store
	Cache   cache.Cache
	Metrics *monitoring.Metrics

	Auth     *auth.Service
	Clients  *service.ClientService
	Messages *service.MessageService
	Mailings *service.MailingService
	Sender   *service.SendService
	Stats    *service.StatsService
	Admin    *service.AdminService

	// 外部依赖的探活对象，由 HTTP 服务注册为就绪检查
	Pingers map[string]health.Pinger
	// 需要定期上报连接池指标的客户端
	Pools map[string]monitoring.PoolSnapshotter

	closers []func()
}

// New 按配置创建所有组件；reg 为 nil 时使用默认指标注册表
func New(cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: monitoring.NewMetrics(reg),
		Pingers: make(map[string]health.Pinger),
		Pools:   make(map[string]monitoring.PoolSnapshotter),
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.onClose(func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	})

	if strings.EqualFold(cfg.Database.Type, "postgres") {
		pg, err := postgres.OpenPool(context.Background(), &cfg.Database, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open postgres pool: %w", err)
		}
		app.Pingers["postgres"] = pg
		app.Pools["postgres"] = pg
		app.onClose(pg.Close)
	}

	var locker cache.Locker
	if cfg.Redis.Address != "" {
		rc, err := redis.Dial(context.Background(), &cfg.Redis, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Cache = redis.NewCache(rc, redisPrefix)
		locker = redis.NewLocker(rc, redisPrefix)
		app.Pingers["redis"] = rc
		app.Pools["redis"] = rc
		app.onClose(func() { _ = rc.Close() })
		log.Info("using redis cache", zap.String("address", cfg.Redis.Address))
	} else {
		local := cache.NewLocalCache(cfg.Cache.MaxLocalSize, cfg.Cache.StatsTTL)
		app.Cache = local
		locker = cache.NewLocalLocker()
		app.onClose(local.Close)
		log.Info("using local cache", zap.Int("max_size", cfg.Cache.MaxLocalSize))
	}

	transport, err := mail.New(cfg.Mail, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	ttl := cfg.Cache.StatsTTL
	inv := cache.NewInvalidator(app.Cache, log)
	ledger := service.NewLedger(store, inv, app.Metrics, log)

	app.Auth = auth.NewService(store, auth.NewJWTManager(&cfg.JWT), app.Metrics, log)
	app.Clients = service.NewClientService(store, app.Cache, ttl, inv, log)
	app.Messages = service.NewMessageService(store, app.Cache, ttl, inv, log)
	app.Mailings = service.NewMailingService(store, app.Cache, ttl, inv, app.Metrics, log)
	app.Sender = service.NewSendService(store, ledger, transport, locker, inv, app.Metrics, log, service.SendOptions{
		From:    cfg.Mail.From,
		LockTTL: cfg.Cache.SendLockTTL,
	})
	app.Stats = service.NewStatsService(store, app.Cache, ttl, app.Metrics, log)
	app.Admin = service.NewAdminService(store, log)

	return app, nil
}

// Close 按创建的逆序释放资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// openStore 根据 database.type 选择存储实现，留空时使用内存存储
func openStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch strings.ToLower(cfg.Database.Type) {
	case "":
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	case "postgres":
		store, err := postgres.NewStore(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		log.Info("using database storage", zap.String("type", "postgres"))
		return store, nil
	case "mysql":
		store, err := postgres.NewMySQLStore(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mysql storage: %w", err)
		}
		log.Info("using database storage", zap.String("type", "mysql"))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q (supported: postgres, mysql)", cfg.Database.Type)
	}
}
