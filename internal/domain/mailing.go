package domain

import "time"

// MailingStatus 邮件群发状态
type MailingStatus string

const (
	MailingCreated  MailingStatus = "created"
	MailingStarted  MailingStatus = "started"
	MailingFinished MailingStatus = "finished"
	MailingDisabled MailingStatus = "disabled" // 管理员停用，发送视角下为终态
)

// Valid 判断状态取值是否合法
func (s MailingStatus) Valid() bool {
	switch s {
	case MailingCreated, MailingStarted, MailingFinished, MailingDisabled:
		return true
	}
	return false
}

// Mailing 表示一次在时间窗口内向一组联系人发送同一模板的群发任务
type Mailing struct {
	ID           string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	StartAt      time.Time     `json:"startAt" gorm:"not null"`
	EndAt        time.Time     `json:"endAt" gorm:"not null;index"`
	Status       MailingStatus `json:"status" gorm:"type:varchar(20);default:'created';index"`
	MessageID    string        `json:"messageId" gorm:"type:varchar(36);index;not null"`
	OwnerID      string        `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	ReceivedByID *string       `json:"receivedById,omitempty" gorm:"type:varchar(36)"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	// 收件人 ID 集合，存储在 mailing_recipients 表
	RecipientIDs []string `json:"recipientIds" gorm:"-"`

	// 停用操作的一次性豁免，仅对紧随其后的那次保存生效
	disableBypass bool
}

// MailingRecipient 群发与联系人的多对多关联
type MailingRecipient struct {
	MailingID string `json:"mailingId" gorm:"primaryKey;type:varchar(36)"`
	ClientID  string `json:"clientId" gorm:"primaryKey;type:varchar(36);index"`
}

// MailingInput 创建或更新群发时的输入
type MailingInput struct {
	StartAt      time.Time `json:"startAt" validate:"required"`
	EndAt        time.Time `json:"endAt" validate:"required,gtfield=StartAt"`
	MessageID    string    `json:"messageId" validate:"required"`
	RecipientIDs []string  `json:"recipientIds" validate:"dive,required"`
}

// Normalize 在每次持久化前执行写入时不变量：
// 结束时间早于 now 的群发强制为 finished，覆盖同一次写入中设置的任何状态。
//
// 由 Disable 设置的豁免只作用于这一次写入，调用后即被清除。
func (m *Mailing) Normalize(now time.Time) {
	if m.disableBypass {
		m.disableBypass = false
		return
	}
	if m.EndAt.Before(now) {
		m.Status = MailingFinished
	}
}

// CompletePass 发送轮次结束后的状态转换
func (m *Mailing) CompletePass(now time.Time) {
	if !m.EndAt.After(now) {
		m.Status = MailingFinished
		return
	}
	m.Status = MailingStarted
}

// Disable 停用群发，可从任意状态进入
func (m *Mailing) Disable() {
	m.Status = MailingDisabled
	m.disableBypass = true
}

// CheckSendable 检查能否开始一次发送轮次，不改变状态
func (m *Mailing) CheckSendable(now time.Time) error {
	switch {
	case m.Status == MailingFinished:
		return ErrMailingFinished
	case m.Status == MailingDisabled:
		return ErrMailingDisabled
	case m.StartAt.After(now):
		return ErrMailingNotStarted
	}
	return nil
}

// IsActive 群发是否处于进行中
func (m *Mailing) IsActive() bool {
	return m.Status == MailingStarted
}

// SendOutcome 一次发送请求的结果
type SendOutcome string

const (
	OutcomeCompleted       SendOutcome = "completed"
	OutcomeForbidden       SendOutcome = "forbidden"
	OutcomeAlreadyFinished SendOutcome = "already_finished"
	OutcomeDisabled        SendOutcome = "disabled"
	OutcomeNotStarted      SendOutcome = "not_started"
	OutcomeInProgress      SendOutcome = "in_progress"
	OutcomeNotFound        SendOutcome = "not_found"
)

// Rejected 结果是否表示请求被拒绝（未执行发送）
func (o SendOutcome) Rejected() bool {
	return o != OutcomeCompleted
}

// SendResult 发送请求的返回值，不携带逐个收件人的明细
type SendResult struct {
	MailingID string        `json:"mailingId"`
	Outcome   SendOutcome   `json:"outcome"`
	Status    MailingStatus `json:"status,omitempty"`
}
