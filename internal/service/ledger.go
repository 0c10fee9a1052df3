package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/monitoring"
	"mailflow/backend/internal/storage"
)

// Ledger 投递记录账本，只追加
type Ledger struct {
	repo    storage.AttemptRepository
	inv     *cache.Invalidator
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewLedger 创建投递记录账本
func NewLedger(repo storage.AttemptRepository, inv *cache.Invalidator, metrics *monitoring.Metrics, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		repo:    repo,
		inv:     inv,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Record 追加一条投递记录，并使群发所有者的统计缓存失效
func (l *Ledger) Record(ctx context.Context, mailing *domain.Mailing, client *domain.Client, status domain.AttemptStatus, response string) (*domain.Attempt, error) {
	attempt := &domain.Attempt{
		ID:             uuid.NewString(),
		MailingID:      mailing.ID,
		ClientID:       client.ID,
		Status:         status,
		ServerResponse: response,
		CreatedAt:      l.now(),
	}
	if err := l.repo.CreateAttempt(attempt); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	l.inv.Stats(ctx, mailing.OwnerID)
	l.metrics.RecordAttempt(string(status))
	return attempt, nil
}

// ListByMailing 按时间顺序列出群发的投递记录
func (l *Ledger) ListByMailing(mailingID string) ([]domain.Attempt, error) {
	return l.repo.ListAttempts(mailingID)
}
