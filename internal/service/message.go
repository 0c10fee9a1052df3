package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/storage"
)

// MessageService 邮件模板的增删改查
type MessageService struct {
	repo   storage.MessageRepository
	lists  *listCache
	inv    *cache.Invalidator
	logger *zap.Logger
}

// NewMessageService 创建邮件模板服务
func NewMessageService(repo storage.MessageRepository, c cache.Cache, ttl time.Duration, inv *cache.Invalidator, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		repo:   repo,
		lists:  newListCache(c, ttl, logger),
		inv:    inv,
		logger: logger,
	}
}

// Create 为调用者创建邮件模板
func (s *MessageService) Create(ctx context.Context, actor *domain.User, input domain.MessageInput) (*domain.Message, error) {
	if !actor.Can(domain.CapOwnerWrite) {
		return nil, domain.ErrForbidden
	}
	input.Subject = strings.TrimSpace(input.Subject)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:      uuid.NewString(),
		Subject: input.Subject,
		Body:    input.Body,
		OwnerID: actor.ID,
	}
	if err := s.repo.CreateMessage(message); err != nil {
		return nil, err
	}

	s.inv.Messages(ctx, actor.ID)
	return message, nil
}

// Get 获取邮件模板
func (s *MessageService) Get(_ context.Context, actor *domain.User, id string) (*domain.Message, error) {
	message, err := s.repo.GetMessage(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanView(actor, message.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return message, nil
}

// List 列出调用者可见的邮件模板
func (s *MessageService) List(ctx context.Context, actor *domain.User) ([]domain.Message, error) {
	return cachedList(ctx, s.lists, actor, cache.MessageListKey, s.repo.ListMessages)
}

// Update 修改邮件模板
func (s *MessageService) Update(ctx context.Context, actor *domain.User, id string, input domain.MessageInput) (*domain.Message, error) {
	message, err := s.repo.GetMessage(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanMutate(actor, message.OwnerID) {
		return nil, domain.ErrForbidden
	}
	input.Subject = strings.TrimSpace(input.Subject)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	message.Subject = input.Subject
	message.Body = input.Body
	if err := s.repo.UpdateMessage(message); err != nil {
		return nil, err
	}

	s.inv.Messages(ctx, message.OwnerID)
	return message, nil
}

// Delete 删除邮件模板，使用它的群发一并删除
func (s *MessageService) Delete(ctx context.Context, actor *domain.User, id string) error {
	message, err := s.repo.GetMessage(id)
	if err != nil {
		return err
	}
	if !domain.CanMutate(actor, message.OwnerID) {
		return domain.ErrForbidden
	}

	if err := s.repo.DeleteMessage(id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	// 级联删除的群发和投递记录同样属于该用户
	s.inv.Owner(ctx, message.OwnerID)
	s.logger.Info("message deleted", zap.String("message_id", id))
	return nil
}
