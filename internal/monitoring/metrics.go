package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有方法对 nil 接收者安全，服务层可以不注入指标。
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 发送指标
	SendPassesTotal    *prometheus.CounterVec
	SendPassDuration   prometheus.Histogram
	AttemptsTotal      *prometheus.CounterVec
	MailingsFinalized  prometheus.Counter
	StatsCacheRequests *prometheus.CounterVec

	// 连接池指标
	PoolConnections *prometheus.GaugeVec

	// 用户指标
	UsersRegistered prometheus.Counter

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标并注册到 reg；reg 为 nil 时使用默认注册表
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		gatherer: gatherer,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		SendPassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailflow_send_passes_total",
				Help: "Send requests by outcome",
			},
			[]string{"outcome"},
		),

		SendPassDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailflow_send_pass_duration_seconds",
				Help:    "Duration of completed send passes in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),

		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailflow_attempts_total",
				Help: "Delivery attempts by status",
			},
			[]string{"status"},
		),

		MailingsFinalized: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailflow_mailings_finalized_total",
				Help: "Mailings marked finished by the expiry sweep",
			},
		),

		StatsCacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailflow_stats_cache_total",
				Help: "Statistics cache lookups by result",
			},
			[]string{"result"},
		),

		PoolConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mailflow_pool_connections",
				Help: "Connections held by external connection pools",
			},
			[]string{"pool", "state"},
		),

		UsersRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailflow_users_registered_total",
				Help: "Total number of users registered",
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailflow_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSendOutcome 记录一次发送请求的结果
func (m *Metrics) RecordSendOutcome(outcome string) {
	if m == nil {
		return
	}
	m.SendPassesTotal.WithLabelValues(outcome).Inc()
}

// RecordSendPassDuration 记录一次完整发送轮次的耗时
func (m *Metrics) RecordSendPassDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.SendPassDuration.Observe(d.Seconds())
}

// RecordAttempt 记录一次投递
func (m *Metrics) RecordAttempt(status string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(status).Inc()
}

// RecordMailingsFinalized 记录过期清扫完成的群发数
func (m *Metrics) RecordMailingsFinalized(n int) {
	if m == nil {
		return
	}
	m.MailingsFinalized.Add(float64(n))
}

// RecordStatsCache 记录统计缓存命中情况（hit / miss）
func (m *Metrics) RecordStatsCache(result string) {
	if m == nil {
		return
	}
	m.StatsCacheRequests.WithLabelValues(result).Inc()
}

// PoolStats 连接池在某一时刻的快照
type PoolStats struct {
	Total int
	Idle  int
	InUse int
}

// RecordPoolStats 更新连接池连接数（pool 为 postgres / redis）
func (m *Metrics) RecordPoolStats(pool string, stats PoolStats) {
	if m == nil {
		return
	}
	m.PoolConnections.WithLabelValues(pool, "total").Set(float64(stats.Total))
	m.PoolConnections.WithLabelValues(pool, "idle").Set(float64(stats.Idle))
	m.PoolConnections.WithLabelValues(pool, "in_use").Set(float64(stats.InUse))
}

// PoolSnapshotter 能报告连接池状态的客户端
type PoolSnapshotter interface {
	PoolStats() PoolStats
}

// CollectPools 立即采集一次连接池状态，之后每隔 interval 采集，直到 ctx 结束
func (m *Metrics) CollectPools(ctx context.Context, interval time.Duration, pools map[string]PoolSnapshotter) {
	if m == nil || len(pools) == 0 {
		return
	}
	collect := func() {
		for name, p := range pools {
			m.RecordPoolStats(name, p.PoolStats())
		}
	}

	collect()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collect()
		}
	}
}

// RecordUserRegistered 记录用户注册
func (m *Metrics) RecordUserRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
