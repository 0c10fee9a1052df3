package service

import (
	"context"

	"go.uber.org/zap"

	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/storage"
)

// AdminStore 用户管理需要的存储能力
type AdminStore interface {
	storage.UserRepository
	storage.AdminRepository
}

// AdminService 用户管理服务，需要 manage_users 能力
type AdminService struct {
	store  AdminStore
	logger *zap.Logger
}

// NewAdminService 创建用户管理服务
func NewAdminService(store AdminStore, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{store: store, logger: logger}
}

// ListUsersInput 列出用户的输入参数
type ListUsersInput struct {
	Page     int
	PageSize int
	Search   string // 按邮箱搜索
	Role     *domain.UserRole
	IsActive *bool
}

// ListUsersOutput 列出用户的输出结果
type ListUsersOutput struct {
	Users      []domain.User `json:"users"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// ListUsers 分页列出用户
func (s *AdminService) ListUsers(_ context.Context, actor *domain.User, input ListUsersInput) (*ListUsersOutput, error) {
	if !domain.CanManageUsers(actor) {
		return nil, domain.ErrForbidden
	}

	if input.Page <= 0 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = 20
	}
	if input.PageSize > 100 {
		input.PageSize = 100
	}

	users, total, err := s.store.ListUsers(storage.UserFilter{
		Page:     input.Page,
		PageSize: input.PageSize,
		Search:   input.Search,
		Role:     input.Role,
		IsActive: input.IsActive,
	})
	if err != nil {
		return nil, err
	}

	return &ListUsersOutput{
		Users:      users,
		Total:      total,
		Page:       input.Page,
		PageSize:   input.PageSize,
		TotalPages: (total + input.PageSize - 1) / input.PageSize,
	}, nil
}

// GetUser 获取用户详情
func (s *AdminService) GetUser(_ context.Context, actor *domain.User, userID string) (*domain.User, error) {
	if !domain.CanManageUsers(actor) {
		return nil, domain.ErrForbidden
	}
	return s.store.GetUserByID(userID)
}

// SetUserActive 封禁或解封用户；不能修改自己，也不能修改站点所有者
func (s *AdminService) SetUserActive(_ context.Context, actor *domain.User, userID string, active bool) (*domain.User, error) {
	if !domain.CanManageUsers(actor) {
		return nil, domain.ErrForbidden
	}
	if actor.ID == userID {
		return nil, domain.ErrCannotModifySelf
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user.IsOwnerRole() {
		return nil, domain.ErrCannotModifyOwner
	}

	user.IsActive = active
	if err := s.store.UpdateUser(user); err != nil {
		return nil, err
	}

	s.logger.Info("user active state changed",
		zap.String("user_id", userID),
		zap.Bool("active", active),
		zap.String("actor_id", actor.ID))
	return user, nil
}
