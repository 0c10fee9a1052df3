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
)

// MailingStore 群发管理需要的存储能力
type MailingStore interface {
	SendStore
	ListAttempts(mailingID string) ([]domain.Attempt, error)
}

// MailingService 群发的增删改查、停用和过期清扫
type MailingService struct {
	store   MailingStore
	lists   *listCache
	inv     *cache.Invalidator
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewMailingService 创建群发服务
func NewMailingService(store MailingStore, c cache.Cache, ttl time.Duration, inv *cache.Invalidator, metrics *monitoring.Metrics, logger *zap.Logger) *MailingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailingService{
		store:   store,
		lists:   newListCache(c, ttl, logger),
		inv:     inv,
		metrics: metrics,
		logger:  logger,
	}
}

// Create 为调用者创建群发；模板和收件人都必须属于调用者
func (s *MailingService) Create(ctx context.Context, actor *domain.User, input domain.MailingInput) (*domain.Mailing, error) {
	if !actor.Can(domain.CapOwnerWrite) {
		return nil, domain.ErrForbidden
	}
	recipients, err := s.checkInput(actor, input)
	if err != nil {
		return nil, err
	}

	mailing := &domain.Mailing{
		ID:           uuid.NewString(),
		StartAt:      input.StartAt,
		EndAt:        input.EndAt,
		Status:       domain.MailingCreated,
		MessageID:    input.MessageID,
		OwnerID:      actor.ID,
		RecipientIDs: recipients,
	}
	if err := s.store.CreateMailing(mailing); err != nil {
		return nil, fmt.Errorf("create mailing: %w", err)
	}

	s.invalidate(ctx, actor.ID)
	s.logger.Info("mailing created",
		zap.String("mailing_id", mailing.ID),
		zap.String("owner_id", actor.ID),
		zap.Int("recipients", len(recipients)))
	return mailing, nil
}

// Get 获取群发（含收件人）
func (s *MailingService) Get(_ context.Context, actor *domain.User, id string) (*domain.Mailing, error) {
	mailing, err := s.store.GetMailing(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanView(actor, mailing.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return mailing, nil
}

// List 列出调用者可见的群发
func (s *MailingService) List(ctx context.Context, actor *domain.User) ([]domain.Mailing, error) {
	return cachedList(ctx, s.lists, actor, cache.MailingListKey, s.store.ListMailings)
}

// Update 修改群发的时间窗口、模板和收件人
func (s *MailingService) Update(ctx context.Context, actor *domain.User, id string, input domain.MailingInput) (*domain.Mailing, error) {
	mailing, err := s.store.GetMailing(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanMutate(actor, mailing.OwnerID) {
		return nil, domain.ErrForbidden
	}
	recipients, err := s.checkInput(actor, input)
	if err != nil {
		return nil, err
	}

	mailing.StartAt = input.StartAt
	mailing.EndAt = input.EndAt
	mailing.MessageID = input.MessageID
	if err := s.store.SaveMailing(mailing); err != nil {
		return nil, fmt.Errorf("save mailing: %w", err)
	}
	if err := s.store.SetRecipients(mailing.ID, recipients); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	mailing.RecipientIDs = recipients

	s.invalidate(ctx, mailing.OwnerID)
	return mailing, nil
}

// Delete 删除群发及其投递记录
func (s *MailingService) Delete(ctx context.Context, actor *domain.User, id string) error {
	mailing, err := s.store.GetMailing(id)
	if err != nil {
		return err
	}
	if !domain.CanMutate(actor, mailing.OwnerID) {
		return domain.ErrForbidden
	}
	if err := s.store.DeleteMailing(id); err != nil {
		return fmt.Errorf("delete mailing: %w", err)
	}

	s.inv.Owner(ctx, mailing.OwnerID)
	s.logger.Info("mailing deleted", zap.String("mailing_id", id))
	return nil
}

// Disable 停用群发，需要 disable_mailing 能力
func (s *MailingService) Disable(ctx context.Context, actor *domain.User, id string) (*domain.Mailing, error) {
	if !domain.CanDisableMailing(actor) {
		return nil, domain.ErrForbidden
	}
	mailing, err := s.store.GetMailing(id)
	if err != nil {
		return nil, err
	}

	mailing.Disable()
	if err := s.store.SaveMailing(mailing); err != nil {
		return nil, fmt.Errorf("save mailing: %w", err)
	}

	s.invalidate(ctx, mailing.OwnerID)
	s.logger.Info("mailing disabled",
		zap.String("mailing_id", id),
		zap.String("actor_id", actor.ID))
	return mailing, nil
}

// Attempts 列出群发的投递记录
func (s *MailingService) Attempts(_ context.Context, actor *domain.User, id string) ([]domain.Attempt, error) {
	mailing, err := s.store.GetMailing(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanView(actor, mailing.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return s.store.ListAttempts(id)
}

// FinalizeExpired 重新保存已过结束时间但仍未结束的群发，使其状态变为 finished
func (s *MailingService) FinalizeExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredMailings()
	if err != nil {
		return 0, fmt.Errorf("list expired mailings: %w", err)
	}

	finalized := 0
	for i := range expired {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		mailing := &expired[i]
		if err := s.store.SaveMailing(mailing); err != nil {
			s.logger.Error("failed to finalize mailing",
				zap.String("mailing_id", mailing.ID),
				zap.Error(err))
			continue
		}
		s.invalidate(ctx, mailing.OwnerID)
		finalized++
	}

	if finalized > 0 {
		s.metrics.RecordMailingsFinalized(finalized)
		s.logger.Info("expired mailings finalized", zap.Int("count", finalized))
	}
	return finalized, nil
}

// checkInput 校验输入并返回去重后的收件人 ID
func (s *MailingService) checkInput(actor *domain.User, input domain.MailingInput) ([]string, error) {
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	message, err := s.store.GetMessage(input.MessageID)
	if err != nil {
		return nil, err
	}
	if message.OwnerID != actor.ID {
		return nil, domain.ErrForbidden
	}

	ids := uniqueIDs(input.RecipientIDs)
	clients, err := s.store.GetClientsByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	if len(clients) != len(ids) {
		return nil, domain.ErrClientNotFound
	}
	for _, c := range clients {
		if c.OwnerID != actor.ID {
			return nil, domain.ErrForbidden
		}
	}
	return ids, nil
}

// invalidate 群发变化影响列表、首页概览和统计
func (s *MailingService) invalidate(ctx context.Context, ownerID string) {
	s.inv.Mailings(ctx, ownerID)
	s.inv.Stats(ctx, ownerID)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
