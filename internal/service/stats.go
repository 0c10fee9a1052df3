package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/monitoring"
)

// StatsStore 统计需要的存储能力
type StatsStore interface {
	ListMailings(ownerID string) ([]domain.Mailing, error)
	CountMailings(status *domain.MailingStatus) (int64, error)
	CountClients() (int64, error)
	CountAttempts(mailingID string, status domain.AttemptStatus) (int64, error)
}

// StatsService 基于投递记录汇总统计，结果带缓存
type StatsService struct {
	store   StatsStore
	cache   cache.Cache
	ttl     time.Duration
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewStatsService 创建统计服务；ttl 为 0 时使用 300 秒
func NewStatsService(store StatsStore, c cache.Cache, ttl time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &StatsService{
		store:   store,
		cache:   c,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// GetOwnerStats 返回调用者名下群发的投递统计
//
// 没有 view_stats 能力的用户（经理）一律 ErrForbidden，与缓存状态无关。
func (s *StatsService) GetOwnerStats(ctx context.Context, actor *domain.User) (*domain.OwnerStats, error) {
	if !domain.CanViewStats(actor) {
		return nil, domain.ErrForbidden
	}

	key := cache.StatsKey(actor.ID)
	var stats domain.OwnerStats
	if s.readCache(ctx, key, &stats) {
		s.metrics.RecordStatsCache("hit")
		return &stats, nil
	}
	s.metrics.RecordStatsCache("miss")

	computed, err := s.computeOwnerStats(actor.ID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, computed)
	return computed, nil
}

func (s *StatsService) computeOwnerStats(ownerID string) (*domain.OwnerStats, error) {
	mailings, err := s.store.ListMailings(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list mailings: %w", err)
	}

	stats := &domain.OwnerStats{
		OwnerID:  ownerID,
		Mailings: make([]domain.MailingStats, 0, len(mailings)),
	}
	for _, m := range mailings {
		success, err := s.store.CountAttempts(m.ID, domain.AttemptSuccess)
		if err != nil {
			return nil, fmt.Errorf("count successful attempts: %w", err)
		}
		fail, err := s.store.CountAttempts(m.ID, domain.AttemptFailure)
		if err != nil {
			return nil, fmt.Errorf("count failed attempts: %w", err)
		}

		stats.Mailings = append(stats.Mailings, domain.MailingStats{
			ID:           m.ID,
			Status:       m.Status,
			StartAt:      m.StartAt,
			EndAt:        m.EndAt,
			SuccessCount: success,
			FailCount:    fail,
		})
		stats.TotalSuccess += success
		stats.TotalFail += fail
	}
	return stats, nil
}

// GetHomeSummary 返回首页概览：群发总数、进行中群发数、联系人数
func (s *StatsService) GetHomeSummary(ctx context.Context) (*domain.HomeSummary, error) {
	var summary domain.HomeSummary
	if s.readCache(ctx, cache.HomeKey, &summary) {
		return &summary, nil
	}

	total, err := s.store.CountMailings(nil)
	if err != nil {
		return nil, fmt.Errorf("count mailings: %w", err)
	}
	started := domain.MailingStarted
	active, err := s.store.CountMailings(&started)
	if err != nil {
		return nil, fmt.Errorf("count active mailings: %w", err)
	}
	recipients, err := s.store.CountClients()
	if err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}

	summary = domain.HomeSummary{
		TotalMailings:    total,
		ActiveMailings:   active,
		UniqueRecipients: recipients,
	}
	s.writeCache(ctx, cache.HomeKey, &summary)
	return &summary, nil
}

func (s *StatsService) readCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := cache.GetJSON(ctx, s.cache, key, dst)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *StatsService) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, value, s.ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
