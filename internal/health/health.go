package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可探活的依赖（Redis 客户端、pgx 连接池等）
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
//
// 存储检查注册为存活检查；Redis、数据库连接池等外部依赖注册为就绪检查。
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(storeHealth func() error, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	hc.health.AddLivenessCheck("store", storeHealth)
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))

	return hc
}

// AddReadinessPinger 注册一个带超时的就绪检查
func (hc *HealthChecker) AddReadinessPinger(name string, p Pinger) {
	hc.health.AddReadinessCheck(name, PingCheck(p, 3*time.Second))
}

// Handler 返回健康检查处理器（提供 /live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveHandler 存活检查处理器
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查处理器
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// PingCheck 将 Pinger 包装为 healthcheck.Check
func PingCheck(p Pinger, timeout time.Duration) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}
