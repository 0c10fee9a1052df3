package postgres

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store 关系型数据库存储实现（PostgreSQL / MySQL）
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	now := func() time.Time { return time.Now().UTC() }

	// 配置 GORM
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc:        now,
		TranslateError: true, // 唯一约束冲突转换为 gorm.ErrDuplicatedKey
	}

	// 连接数据库
	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db, now: now}

	// 自动迁移数据库表
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Client{},
		&domain.Message{},
		&domain.Mailing{},
		&domain.MailingRecipient{},
		&domain.Attempt{},
	)
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	err := s.db.Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrUserEmailExists
	}
	return err
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &user, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	if err := s.db.Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &user, nil
}

// UpdateUser 更新用户，邮箱不可修改
func (s *Store) UpdateUser(user *domain.User) error {
	result := s.db.Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"password_hash":     user.PasswordHash,
		"role":              user.Role,
		"is_active":         user.IsActive,
		"is_email_verified": user.IsEmailVerified,
		"updated_at":        s.now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	now := s.now()
	return s.db.Model(&domain.User{}).Where("id = ?", userID).Updates(map[string]any{
		"last_login_at": now,
		"updated_at":    now,
	}).Error
}

// ========== Admin Repository ==========

// ListUsers 列出用户（支持分页和过滤）
func (s *Store) ListUsers(filter storage.UserFilter) ([]domain.User, int, error) {
	query := s.db.Model(&domain.User{})

	// 搜索过滤
	if filter.Search != "" {
		query = query.Where("LOWER(email) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	// 角色过滤
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}

	// 激活状态过滤
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	// 分页查询
	var users []domain.User
	err := query.Offset((page - 1) * pageSize).Limit(pageSize).Order("created_at DESC").Find(&users).Error
	return users, int(total), err
}

// ========== Client Repository ==========

// CreateClient 创建联系人
func (s *Store) CreateClient(client *domain.Client) error {
	err := s.db.Create(client).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrClientEmailExists
	}
	return err
}

// GetClient 获取联系人
func (s *Store) GetClient(id string) (*domain.Client, error) {
	var client domain.Client
	if err := s.db.Where("id = ?", id).First(&client).Error; err != nil {
		return nil, notFound(err, domain.ErrClientNotFound)
	}
	return &client, nil
}

// GetClientsByIDs 批量获取联系人
func (s *Store) GetClientsByIDs(ids []string) ([]domain.Client, error) {
	clients := make([]domain.Client, 0, len(ids))
	if len(ids) == 0 {
		return clients, nil
	}
	err := s.db.Where("id IN ?", ids).Find(&clients).Error
	return clients, err
}

// ListClients 列出联系人，ownerID 为空时返回全部
func (s *Store) ListClients(ownerID string) ([]domain.Client, error) {
	var clients []domain.Client
	query := s.db.Order("created_at ASC")
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	err := query.Find(&clients).Error
	return clients, err
}

// UpdateClient 更新联系人，所有者不可变更
func (s *Store) UpdateClient(client *domain.Client) error {
	result := s.db.Model(&domain.Client{}).Where("id = ?", client.ID).Updates(map[string]any{
		"email":      client.Email,
		"full_name":  client.FullName,
		"comment":    client.Comment,
		"updated_at": s.now(),
	})
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return domain.ErrClientEmailExists
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

// DeleteClient 删除联系人，级联删除投递记录和收件人关联
func (s *Store) DeleteClient(id string) ([]string, error) {
	var owners []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var client domain.Client
		if err := tx.Where("id = ?", id).First(&client).Error; err != nil {
			return notFound(err, domain.ErrClientNotFound)
		}

		// 受影响的群发所有者
		var mailingOwners []string
		if err := tx.Model(&domain.Mailing{}).Distinct("owner_id").
			Where("id IN (?) OR id IN (?)",
				tx.Model(&domain.MailingRecipient{}).Select("mailing_id").Where("client_id = ?", id),
				tx.Model(&domain.Attempt{}).Select("mailing_id").Where("client_id = ?", id),
			).
			Pluck("owner_id", &mailingOwners).Error; err != nil {
			return err
		}
		owners = mergeOwners(client.OwnerID, mailingOwners)

		if err := tx.Where("client_id = ?", id).Delete(&domain.Attempt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&domain.MailingRecipient{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Client{}).Error
	})
	if err != nil {
		return nil, err
	}
	return owners, nil
}

// CountClients 联系人总数
func (s *Store) CountClients() (int64, error) {
	var n int64
	err := s.db.Model(&domain.Client{}).Count(&n).Error
	return n, err
}

// ========== Message Repository ==========

// CreateMessage 创建邮件模板
func (s *Store) CreateMessage(message *domain.Message) error {
	return s.db.Create(message).Error
}

// GetMessage 获取邮件模板
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	var message domain.Message
	if err := s.db.Where("id = ?", id).First(&message).Error; err != nil {
		return nil, notFound(err, domain.ErrMessageNotFound)
	}
	return &message, nil
}

// ListMessages 列出邮件模板，ownerID 为空时返回全部
func (s *Store) ListMessages(ownerID string) ([]domain.Message, error) {
	var messages []domain.Message
	query := s.db.Order("created_at ASC")
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	err := query.Find(&messages).Error
	return messages, err
}

// UpdateMessage 更新邮件模板
func (s *Store) UpdateMessage(message *domain.Message) error {
	result := s.db.Model(&domain.Message{}).Where("id = ?", message.ID).Updates(map[string]any{
		"subject":    message.Subject,
		"body":       message.Body,
		"updated_at": s.now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// DeleteMessage 删除邮件模板，级联删除依赖它的群发
func (s *Store) DeleteMessage(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&domain.Message{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrMessageNotFound
		}

		var mailingIDs []string
		if err := tx.Model(&domain.Mailing{}).Where("message_id = ?", id).Pluck("id", &mailingIDs).Error; err != nil {
			return err
		}
		return deleteMailings(tx, mailingIDs)
	})
}

// ========== Mailing Repository ==========

// CreateMailing 创建群发及其收件人关联
func (s *Store) CreateMailing(mailing *domain.Mailing) error {
	if mailing.Status == "" {
		mailing.Status = domain.MailingCreated
	}
	mailing.Normalize(s.now())

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(mailing).Error; err != nil {
			return err
		}
		return replaceRecipients(tx, mailing.ID, mailing.RecipientIDs)
	})
}

// GetMailing 获取群发（含收件人 ID）
func (s *Store) GetMailing(id string) (*domain.Mailing, error) {
	var mailing domain.Mailing
	if err := s.db.Where("id = ?", id).First(&mailing).Error; err != nil {
		return nil, notFound(err, domain.ErrMailingNotFound)
	}
	ids, err := s.recipientIDs(mailing.ID)
	if err != nil {
		return nil, err
	}
	mailing.RecipientIDs = ids
	return &mailing, nil
}

// ListMailings 列出群发，ownerID 为空时返回全部
func (s *Store) ListMailings(ownerID string) ([]domain.Mailing, error) {
	var mailings []domain.Mailing
	query := s.db.Order("created_at ASC")
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.Find(&mailings).Error; err != nil {
		return nil, err
	}

	for i := range mailings {
		ids, err := s.recipientIDs(mailings[i].ID)
		if err != nil {
			return nil, err
		}
		mailings[i].RecipientIDs = ids
	}
	return mailings, nil
}

// SaveMailing 保存群发字段（不含收件人），持久化前执行写入时不变量
func (s *Store) SaveMailing(mailing *domain.Mailing) error {
	now := s.now()
	mailing.Normalize(now)

	result := s.db.Model(&domain.Mailing{}).Where("id = ?", mailing.ID).Updates(map[string]any{
		"start_at":       mailing.StartAt,
		"end_at":         mailing.EndAt,
		"status":         mailing.Status,
		"message_id":     mailing.MessageID,
		"received_by_id": mailing.ReceivedByID,
		"updated_at":     now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMailingNotFound
	}
	return nil
}

// CompleteMailingPass 在事务内锁定行后只更新状态
func (s *Store) CompleteMailingPass(id string) (*domain.Mailing, error) {
	var mailing domain.Mailing
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&mailing).Error; err != nil {
			return notFound(err, domain.ErrMailingNotFound)
		}
		if mailing.Status != domain.MailingCreated && mailing.Status != domain.MailingStarted {
			return nil
		}

		now := s.now()
		mailing.CompletePass(now)
		mailing.Normalize(now)
		mailing.UpdatedAt = now
		return tx.Model(&domain.Mailing{}).Where("id = ?", id).Updates(map[string]any{
			"status":     mailing.Status,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	ids, err := s.recipientIDs(id)
	if err != nil {
		return nil, err
	}
	mailing.RecipientIDs = ids
	return &mailing, nil
}

// SetRecipients 替换收件人集合
func (s *Store) SetRecipients(mailingID string, clientIDs []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Mailing{}).Where("id = ?", mailingID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrMailingNotFound
		}
		return replaceRecipients(tx, mailingID, clientIDs)
	})
}

// DeleteMailing 删除群发，级联删除投递记录和收件人关联
func (s *Store) DeleteMailing(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Mailing{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrMailingNotFound
		}
		return deleteMailings(tx, []string{id})
	})
}

// ListExpiredMailings 已过结束时间但尚未完成的群发
func (s *Store) ListExpiredMailings() ([]domain.Mailing, error) {
	var mailings []domain.Mailing
	err := s.db.Where("end_at < ? AND status IN ?", s.now(),
		[]domain.MailingStatus{domain.MailingCreated, domain.MailingStarted}).
		Find(&mailings).Error
	return mailings, err
}

// CountMailings 统计群发数量，status 为空时统计全部
func (s *Store) CountMailings(status *domain.MailingStatus) (int64, error) {
	var n int64
	query := s.db.Model(&domain.Mailing{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Count(&n).Error
	return n, err
}

// ========== Attempt Repository ==========

// CreateAttempt 追加一条投递记录
func (s *Store) CreateAttempt(attempt *domain.Attempt) error {
	return s.db.Create(attempt).Error
}

// ListAttempts 按创建顺序列出投递记录
func (s *Store) ListAttempts(mailingID string) ([]domain.Attempt, error) {
	var attempts []domain.Attempt
	err := s.db.Where("mailing_id = ?", mailingID).Order("created_at ASC").Find(&attempts).Error
	return attempts, err
}

// CountAttempts 统计群发某一状态的投递记录数
func (s *Store) CountAttempts(mailingID string, status domain.AttemptStatus) (int64, error) {
	var n int64
	err := s.db.Model(&domain.Attempt{}).
		Where("mailing_id = ? AND status = ?", mailingID, status).
		Count(&n).Error
	return n, err
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 健康检查
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *Store) recipientIDs(mailingID string) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.Model(&domain.MailingRecipient{}).
		Where("mailing_id = ?", mailingID).
		Order("client_id").
		Pluck("client_id", &ids).Error
	return ids, err
}

func replaceRecipients(tx *gorm.DB, mailingID string, clientIDs []string) error {
	if err := tx.Where("mailing_id = ?", mailingID).Delete(&domain.MailingRecipient{}).Error; err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(clientIDs))
	rows := make([]domain.MailingRecipient, 0, len(clientIDs))
	for _, id := range clientIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, domain.MailingRecipient{MailingID: mailingID, ClientID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func deleteMailings(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("mailing_id IN ?", ids).Delete(&domain.Attempt{}).Error; err != nil {
		return err
	}
	if err := tx.Where("mailing_id IN ?", ids).Delete(&domain.MailingRecipient{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&domain.Mailing{}).Error
}

func mergeOwners(first string, rest []string) []string {
	seen := map[string]struct{}{first: {}}
	owners := []string{first}
	for _, o := range rest {
		if _, ok := seen[o]; !ok {
			seen[o] = struct{}{}
			owners = append(owners, o)
		}
	}
	return owners
}

func notFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
