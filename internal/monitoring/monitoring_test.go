package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordSendOutcome("completed")
	m.RecordAttempt("success")
	m.RecordStatsCache("hit")

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `mailflow_send_passes_total{outcome="completed"} 1`)
	assert.Contains(t, body, `mailflow_attempts_total{status="success"} 1`)
	assert.Contains(t, body, `mailflow_stats_cache_total{result="hit"} 1`)
}

func TestRecordPoolStats(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordPoolStats("postgres", PoolStats{Total: 5, Idle: 3, InUse: 2})
	m.RecordPoolStats("redis", PoolStats{Total: 2, Idle: 2})

	assert.Equal(t, float64(5), testutil.ToFloat64(m.PoolConnections.WithLabelValues("postgres", "total")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PoolConnections.WithLabelValues("postgres", "idle")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PoolConnections.WithLabelValues("postgres", "in_use")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PoolConnections.WithLabelValues("redis", "in_use")))

	// 新快照覆盖旧值
	m.RecordPoolStats("postgres", PoolStats{Total: 1, Idle: 1})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PoolConnections.WithLabelValues("postgres", "total")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PoolConnections.WithLabelValues("postgres", "in_use")))
}

type fakePool struct {
	mu    sync.Mutex
	stats PoolStats
	calls int
}

func (p *fakePool) PoolStats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.stats
}

func (p *fakePool) set(stats PoolStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = stats
}

func TestCollectPools(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	pool := &fakePool{stats: PoolStats{Total: 4, Idle: 1, InUse: 3}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.CollectPools(ctx, 10*time.Millisecond, map[string]PoolSnapshotter{"postgres": pool})
	}()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.PoolConnections.WithLabelValues("postgres", "in_use")) == 3
	}, time.Second, 5*time.Millisecond)

	pool.set(PoolStats{Total: 4, Idle: 4})
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.PoolConnections.WithLabelValues("postgres", "in_use")) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CollectPools did not stop after cancel")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSendOutcome("completed")
		m.RecordAttempt("failure")
		m.RecordSendPassDuration(time.Second)
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
		m.RecordPanic()
		m.RecordPoolStats("postgres", PoolStats{Total: 1})
	})
}

func TestAlertManager(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	am := NewAlertManager(zap.New(core))
	am.AddReceiver(NewLogAlertReceiver(zap.New(core)))

	var healthErr error
	am.AddRule(StoreUnavailableRule(func() error { return healthErr }))

	am.CheckRules()
	assert.Empty(t, am.GetActiveAlerts())

	healthErr = errors.New("connection refused")
	am.CheckRules()
	active := am.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "store_unavailable", active[0].ID)
	assert.Equal(t, 1, logs.FilterMessage("CRITICAL ALERT").Len())

	// 冷却期内不重复发送
	am.CheckRules()
	assert.Equal(t, 1, logs.FilterMessage("CRITICAL ALERT").Len())

	healthErr = nil
	am.CheckRules()
	assert.Empty(t, am.GetActiveAlerts())
}

func TestDeliveryFailureRule(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	rule := DeliveryFailureRule(m, 0.5, 4)

	// 样本不足
	m.RecordAttempt("failure")
	assert.False(t, rule.Condition())

	for i := 0; i < 3; i++ {
		m.RecordAttempt("failure")
	}
	m.RecordAttempt("success")
	assert.True(t, rule.Condition())

	for i := 0; i < 4; i++ {
		m.RecordAttempt("success")
	}
	assert.False(t, rule.Condition())
}
