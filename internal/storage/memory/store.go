package memory

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store 使用内存保存全部业务数据，主要用于开发验证和测试。
//
// 读写都复制实体，调用方持有的指针不会与存储内部共享。
type Store struct {
	mu sync.RWMutex

	users   map[string]*domain.User // userID -> user
	byEmail map[string]string       // email -> userID

	clients       map[string]*domain.Client // clientID -> client
	byClientEmail map[string]string         // email -> clientID

	messages   map[string]*domain.Message     // messageID -> message
	mailings   map[string]*domain.Mailing     // mailingID -> mailing
	recipients map[string]map[string]struct{} // mailingID -> clientID set
	attempts   map[string][]*domain.Attempt   // mailingID -> attempts（按创建顺序）

	now func() time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*domain.User),
		byEmail:       make(map[string]string),
		clients:       make(map[string]*domain.Client),
		byClientEmail: make(map[string]string),
		messages:      make(map[string]*domain.Message),
		mailings:      make(map[string]*domain.Mailing),
		recipients:    make(map[string]map[string]struct{}),
		attempts:      make(map[string][]*domain.Attempt),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间来源，测试使用
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ---------- 用户 ----------

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		return errors.New("user ID is required")
	}
	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return domain.ErrUserEmailExists
	}

	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	cp := *user
	s.users[user.ID] = &cp
	s.byEmail[email] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByEmail 根据邮箱获取用户（不区分大小写）
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *s.users[userID]
	return &cp, nil
}

// UpdateUser 更新用户，邮箱不可修改
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}

	user.Email = existing.Email
	user.UpdatedAt = s.now()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	now := s.now()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	return nil
}

// ListUsers 分页查询用户
func (s *Store) ListUsers(filter storage.UserFilter) ([]domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.User, 0)
	for _, user := range s.users {
		if filter.Search != "" && !containsIgnoreCase(user.Email, filter.Search) {
			continue
		}
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.IsActive != nil && user.IsActive != *filter.IsActive {
			continue
		}
		filtered = append(filtered, *user)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	start, end := pageBounds(filter.Page, filter.PageSize, total)
	return filtered[start:end], total, nil
}

// ---------- 联系人 ----------

// CreateClient 创建联系人，邮箱全局唯一
func (s *Store) CreateClient(client *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(client.Email)
	if _, exists := s.byClientEmail[email]; exists {
		return domain.ErrClientEmailExists
	}

	now := s.now()
	client.CreatedAt = now
	client.UpdatedAt = now
	cp := *client
	s.clients[client.ID] = &cp
	s.byClientEmail[email] = client.ID
	return nil
}

// GetClient 获取联系人
func (s *Store) GetClient(id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	cp := *client
	return &cp, nil
}

// GetClientsByIDs 批量获取联系人，不存在的 ID 被忽略
func (s *Store) GetClientsByIDs(ids []string) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Client, 0, len(ids))
	for _, id := range ids {
		if client, ok := s.clients[id]; ok {
			result = append(result, *client)
		}
	}
	return result, nil
}

// ListClients 列出联系人，ownerID 为空时返回全部
func (s *Store) ListClients(ownerID string) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Client, 0)
	for _, client := range s.clients {
		if ownerID == "" || client.OwnerID == ownerID {
			result = append(result, *client)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateClient 更新联系人，所有者不可变更
func (s *Store) UpdateClient(client *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[client.ID]
	if !ok {
		return domain.ErrClientNotFound
	}

	oldEmail := strings.ToLower(existing.Email)
	newEmail := strings.ToLower(client.Email)
	if oldEmail != newEmail {
		if _, exists := s.byClientEmail[newEmail]; exists {
			return domain.ErrClientEmailExists
		}
		delete(s.byClientEmail, oldEmail)
		s.byClientEmail[newEmail] = client.ID
	}

	client.OwnerID = existing.OwnerID
	client.CreatedAt = existing.CreatedAt
	client.UpdatedAt = s.now()
	cp := *client
	s.clients[client.ID] = &cp
	return nil
}

// DeleteClient 删除联系人并级联清理投递记录与收件人关联
func (s *Store) DeleteClient(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}

	affected := map[string]struct{}{client.OwnerID: {}}
	for mailingID, set := range s.recipients {
		if _, in := set[id]; in {
			delete(set, id)
			if m, ok := s.mailings[mailingID]; ok {
				affected[m.OwnerID] = struct{}{}
			}
		}
	}
	for mailingID, list := range s.attempts {
		kept := list[:0]
		for _, a := range list {
			if a.ClientID == id {
				if m, ok := s.mailings[mailingID]; ok {
					affected[m.OwnerID] = struct{}{}
				}
				continue
			}
			kept = append(kept, a)
		}
		s.attempts[mailingID] = kept
	}

	delete(s.byClientEmail, strings.ToLower(client.Email))
	delete(s.clients, id)

	owners := make([]string, 0, len(affected))
	for owner := range affected {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

// CountClients 联系人总数
func (s *Store) CountClients() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.clients)), nil
}

// ---------- 邮件模板 ----------

// CreateMessage 创建邮件模板
func (s *Store) CreateMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	message.CreatedAt = now
	message.UpdatedAt = now
	cp := *message
	s.messages[message.ID] = &cp
	return nil
}

// GetMessage 获取邮件模板
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	message, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	cp := *message
	return &cp, nil
}

// ListMessages 列出邮件模板，ownerID 为空时返回全部
func (s *Store) ListMessages(ownerID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Message, 0)
	for _, message := range s.messages {
		if ownerID == "" || message.OwnerID == ownerID {
			result = append(result, *message)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateMessage 更新邮件模板
func (s *Store) UpdateMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.messages[message.ID]
	if !ok {
		return domain.ErrMessageNotFound
	}

	message.OwnerID = existing.OwnerID
	message.CreatedAt = existing.CreatedAt
	message.UpdatedAt = s.now()
	cp := *message
	s.messages[message.ID] = &cp
	return nil
}

// DeleteMessage 删除邮件模板并级联删除依赖它的群发
func (s *Store) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return domain.ErrMessageNotFound
	}
	for mailingID, m := range s.mailings {
		if m.MessageID == id {
			s.deleteMailingLocked(mailingID)
		}
	}
	delete(s.messages, id)
	return nil
}

// ---------- 群发 ----------

// CreateMailing 创建群发，持久化前执行写入时不变量
func (s *Store) CreateMailing(mailing *domain.Mailing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mailing.Status == "" {
		mailing.Status = domain.MailingCreated
	}
	now := s.now()
	mailing.Normalize(now)
	mailing.CreatedAt = now
	mailing.UpdatedAt = now

	s.putMailingLocked(mailing)
	s.setRecipientsLocked(mailing.ID, mailing.RecipientIDs)
	return nil
}

// GetMailing 获取群发（含收件人 ID）
func (s *Store) GetMailing(id string) (*domain.Mailing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mailing, ok := s.mailings[id]
	if !ok {
		return nil, domain.ErrMailingNotFound
	}
	cp := *mailing
	cp.RecipientIDs = s.recipientIDsLocked(id)
	return &cp, nil
}

// ListMailings 列出群发，ownerID 为空时返回全部
func (s *Store) ListMailings(ownerID string) ([]domain.Mailing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Mailing, 0)
	for id, mailing := range s.mailings {
		if ownerID == "" || mailing.OwnerID == ownerID {
			cp := *mailing
			cp.RecipientIDs = s.recipientIDsLocked(id)
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// SaveMailing 保存群发字段（不含收件人），持久化前执行写入时不变量
func (s *Store) SaveMailing(mailing *domain.Mailing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.mailings[mailing.ID]
	if !ok {
		return domain.ErrMailingNotFound
	}

	now := s.now()
	mailing.Normalize(now)
	mailing.OwnerID = existing.OwnerID
	mailing.CreatedAt = existing.CreatedAt
	mailing.UpdatedAt = now
	s.putMailingLocked(mailing)
	return nil
}

// CompleteMailingPass 只更新状态，其余字段保留当前存储的值
func (s *Store) CompleteMailingPass(id string) (*domain.Mailing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.mailings[id]
	if !ok {
		return nil, domain.ErrMailingNotFound
	}

	now := s.now()
	if existing.Status == domain.MailingCreated || existing.Status == domain.MailingStarted {
		existing.CompletePass(now)
		existing.Normalize(now)
		existing.UpdatedAt = now
	}
	cp := *existing
	cp.RecipientIDs = s.recipientIDsLocked(id)
	return &cp, nil
}

// SetRecipients 替换收件人集合
func (s *Store) SetRecipients(mailingID string, clientIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailings[mailingID]; !ok {
		return domain.ErrMailingNotFound
	}
	s.setRecipientsLocked(mailingID, clientIDs)
	return nil
}

// DeleteMailing 删除群发并级联删除投递记录与收件人关联
func (s *Store) DeleteMailing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailings[id]; !ok {
		return domain.ErrMailingNotFound
	}
	s.deleteMailingLocked(id)
	return nil
}

// ListExpiredMailings 已过结束时间但尚未完成的群发
func (s *Store) ListExpiredMailings() ([]domain.Mailing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	result := make([]domain.Mailing, 0)
	for _, m := range s.mailings {
		if m.EndAt.Before(now) && (m.Status == domain.MailingCreated || m.Status == domain.MailingStarted) {
			result = append(result, *m)
		}
	}
	return result, nil
}

// CountMailings 统计群发数量，status 为空时统计全部
func (s *Store) CountMailings(status *domain.MailingStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, m := range s.mailings {
		if status == nil || m.Status == *status {
			n++
		}
	}
	return n, nil
}

// ---------- 投递记录 ----------

// CreateAttempt 追加一条投递记录
func (s *Store) CreateAttempt(attempt *domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailings[attempt.MailingID]; !ok {
		return domain.ErrMailingNotFound
	}
	if _, ok := s.clients[attempt.ClientID]; !ok {
		return domain.ErrClientNotFound
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = s.now()
	}
	cp := *attempt
	s.attempts[attempt.MailingID] = append(s.attempts[attempt.MailingID], &cp)
	return nil
}

// ListAttempts 按创建顺序列出群发的投递记录
func (s *Store) ListAttempts(mailingID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.attempts[mailingID]
	result := make([]domain.Attempt, 0, len(list))
	for _, a := range list {
		result = append(result, *a)
	}
	return result, nil
}

// CountAttempts 统计群发某一状态的投递记录数
func (s *Store) CountAttempts(mailingID string, status domain.AttemptStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, a := range s.attempts[mailingID] {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

// Close 关闭存储（内存存储无需清理）
func (s *Store) Close() error {
	return nil
}

// Health 健康检查
func (s *Store) Health() error {
	return nil
}

// ---------- 内部工具 ----------

func (s *Store) putMailingLocked(mailing *domain.Mailing) {
	cp := *mailing
	cp.RecipientIDs = nil
	s.mailings[mailing.ID] = &cp
}

func (s *Store) setRecipientsLocked(mailingID string, clientIDs []string) {
	set := make(map[string]struct{}, len(clientIDs))
	for _, id := range clientIDs {
		set[id] = struct{}{}
	}
	s.recipients[mailingID] = set
}

func (s *Store) recipientIDsLocked(mailingID string) []string {
	set := s.recipients[mailingID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) deleteMailingLocked(id string) {
	delete(s.attempts, id)
	delete(s.recipients, id)
	delete(s.mailings, id)
}

func pageBounds(page, pageSize, total int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

// containsIgnoreCase 不区分大小写的包含判断
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
