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

// ClientService 联系人的增删改查
type ClientService struct {
	repo   storage.ClientRepository
	lists  *listCache
	inv    *cache.Invalidator
	logger *zap.Logger
}

// NewClientService 创建联系人服务
func NewClientService(repo storage.ClientRepository, c cache.Cache, ttl time.Duration, inv *cache.Invalidator, logger *zap.Logger) *ClientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{
		repo:   repo,
		lists:  newListCache(c, ttl, logger),
		inv:    inv,
		logger: logger,
	}
}

// Create 为调用者创建联系人
func (s *ClientService) Create(ctx context.Context, actor *domain.User, input domain.ClientInput) (*domain.Client, error) {
	if !actor.Can(domain.CapOwnerWrite) {
		return nil, domain.ErrForbidden
	}
	input = normalizeClientInput(input)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	client := &domain.Client{
		ID:       uuid.NewString(),
		Email:    input.Email,
		FullName: input.FullName,
		Comment:  input.Comment,
		OwnerID:  actor.ID,
	}
	if err := s.repo.CreateClient(client); err != nil {
		return nil, err
	}

	s.inv.Clients(ctx, actor.ID)
	s.logger.Info("client created", zap.String("client_id", client.ID), zap.String("owner_id", actor.ID))
	return client, nil
}

// Get 获取联系人
func (s *ClientService) Get(_ context.Context, actor *domain.User, id string) (*domain.Client, error) {
	client, err := s.repo.GetClient(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanView(actor, client.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return client, nil
}

// List 列出调用者可见的联系人
func (s *ClientService) List(ctx context.Context, actor *domain.User) ([]domain.Client, error) {
	return cachedList(ctx, s.lists, actor, cache.ClientListKey, s.repo.ListClients)
}

// Update 修改联系人，只有所有者可以修改
func (s *ClientService) Update(ctx context.Context, actor *domain.User, id string, input domain.ClientInput) (*domain.Client, error) {
	client, err := s.repo.GetClient(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanMutate(actor, client.OwnerID) {
		return nil, domain.ErrForbidden
	}
	input = normalizeClientInput(input)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	client.Email = input.Email
	client.FullName = input.FullName
	client.Comment = input.Comment
	if err := s.repo.UpdateClient(client); err != nil {
		return nil, err
	}

	s.inv.Clients(ctx, client.OwnerID)
	return client, nil
}

// Delete 删除联系人，级联删除其投递记录并移出所有群发
func (s *ClientService) Delete(ctx context.Context, actor *domain.User, id string) error {
	client, err := s.repo.GetClient(id)
	if err != nil {
		return err
	}
	if !domain.CanMutate(actor, client.OwnerID) {
		return domain.ErrForbidden
	}

	owners, err := s.repo.DeleteClient(id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}

	s.inv.Clients(ctx, client.OwnerID)
	for _, owner := range owners {
		s.inv.Owner(ctx, owner)
	}
	s.logger.Info("client deleted", zap.String("client_id", id), zap.Int("affected_owners", len(owners)))
	return nil
}

func normalizeClientInput(input domain.ClientInput) domain.ClientInput {
	input.Email = domain.NormalizeEmail(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)
	return input
}
