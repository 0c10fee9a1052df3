package domain

import "time"

// Message 表示可复用的邮件模板（主题 + 正文）
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Subject   string    `json:"subject" gorm:"type:varchar(255);not null"`
	Body      string    `json:"body" gorm:"type:text"`
	OwnerID   string    `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageInput 创建或更新邮件模板时的输入
type MessageInput struct {
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required"`
}
