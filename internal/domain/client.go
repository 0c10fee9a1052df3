package domain

import "time"

// Client 表示一个收件联系人
type Client struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	FullName  string    `json:"fullName" gorm:"type:varchar(255)"`
	Comment   string    `json:"comment" gorm:"type:text"`
	OwnerID   string    `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClientInput 创建或更新联系人时的输入
type ClientInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"fullName" validate:"required,max=255"`
	Comment  string `json:"comment" validate:"max=2000"`
}
