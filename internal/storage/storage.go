package storage

import (
	"mailflow/backend/internal/domain"
)

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// UserFilter 用户列表过滤条件
type UserFilter struct {
	Page     int
	PageSize int
	Search   string
	Role     *domain.UserRole
	IsActive *bool
}

// AdminRepository 定义管理员数据存取操作。
type AdminRepository interface {
	ListUsers(filter UserFilter) ([]domain.User, int, error)
}

// ClientRepository 定义联系人数据存取操作。
type ClientRepository interface {
	CreateClient(client *domain.Client) error
	GetClient(id string) (*domain.Client, error)
	GetClientsByIDs(ids []string) ([]domain.Client, error)
	// ListClients ownerID 为空时返回全部
	ListClients(ownerID string) ([]domain.Client, error)
	UpdateClient(client *domain.Client) error
	// DeleteClient 级联删除该联系人的投递记录，并将其移出所有群发的收件人集合。
	// 返回受影响群发的所有者 ID（去重）。
	DeleteClient(id string) ([]string, error)
	CountClients() (int64, error)
}

// MessageRepository 定义邮件模板数据存取操作。
type MessageRepository interface {
	CreateMessage(message *domain.Message) error
	GetMessage(id string) (*domain.Message, error)
	ListMessages(ownerID string) ([]domain.Message, error)
	UpdateMessage(message *domain.Message) error
	// DeleteMessage 级联删除使用该模板的群发（及其投递记录和收件人关联）
	DeleteMessage(id string) error
}

// MailingRepository 定义群发数据存取操作。
//
// 所有写入路径都必须在持久化前调用 Mailing.Normalize。
type MailingRepository interface {
	CreateMailing(mailing *domain.Mailing) error
	GetMailing(id string) (*domain.Mailing, error)
	ListMailings(ownerID string) ([]domain.Mailing, error)
	SaveMailing(mailing *domain.Mailing) error
	// CompleteMailingPass 在当前存储的群发上原子地执行发送轮次结束的状态转换，
	// 只写入状态；停用或已结束的群发保持不变
	CompleteMailingPass(id string) (*domain.Mailing, error)
	// SetRecipients 替换群发的收件人集合
	SetRecipients(mailingID string, clientIDs []string) error
	// DeleteMailing 级联删除投递记录和收件人关联
	DeleteMailing(id string) error
	// ListExpiredMailings 返回已过结束时间但状态仍为 created/started 的群发
	ListExpiredMailings() ([]domain.Mailing, error)
	CountMailings(status *domain.MailingStatus) (int64, error)
}

// AttemptRepository 定义投递记录存取操作；只追加，不提供更新。
type AttemptRepository interface {
	CreateAttempt(attempt *domain.Attempt) error
	ListAttempts(mailingID string) ([]domain.Attempt, error)
	CountAttempts(mailingID string, status domain.AttemptStatus) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	UserRepository
	AdminRepository
	ClientRepository
	MessageRepository
	MailingRepository
	AttemptRepository

	// 工具方法
	Close() error
	Health() error
}
