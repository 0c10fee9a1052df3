package domain

import "time"

// AttemptStatus 投递结果
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailure AttemptStatus = "failure"
)

// Attempt 一次（群发, 联系人）投递结果的不可变记录
type Attempt struct {
	ID             string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailingID      string        `json:"mailingId" gorm:"type:varchar(36);index:idx_attempt_mailing_status;not null"`
	ClientID       string        `json:"clientId" gorm:"type:varchar(36);index;not null"`
	Status         AttemptStatus `json:"status" gorm:"type:varchar(20);index:idx_attempt_mailing_status;not null"`
	ServerResponse string        `json:"serverResponse" gorm:"type:text"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// 级联删除策略
//
// 联系人、模板、群发被删除时依赖数据一律级联删除；用户不会被物理删除。
const (
	CascadeClientAttempts    = "client -> attempts: cascade"
	CascadeClientRecipients  = "client -> mailing_recipients: cascade"
	CascadeMessageMailings   = "message -> mailings: cascade"
	CascadeMailingAttempts   = "mailing -> attempts: cascade"
	CascadeMailingRecipients = "mailing -> mailing_recipients: cascade"
)
