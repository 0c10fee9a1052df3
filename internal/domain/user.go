package domain

import "time"

// UserRole 用户角色
type UserRole string

const (
	RoleUser    UserRole = "user"    // 普通用户，只管理自己的数据
	RoleManager UserRole = "manager" // 管理员，可查看全部数据但不能编辑
	RoleOwner   UserRole = "owner"   // 站点所有者
)

// Valid 判断角色取值是否合法
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleOwner:
		return true
	}
	return false
}

// User 表示注册用户的业务实体
type User struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email           string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash    string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	Role            UserRole   `json:"role" gorm:"type:varchar(20);default:'user';index"`
	IsActive        bool       `json:"isActive" gorm:"default:true"`
	IsEmailVerified bool       `json:"isEmailVerified" gorm:"default:false"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
}

// IsManager 判断用户是否为管理员角色
func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

// IsOwnerRole 判断用户是否为站点所有者
func (u *User) IsOwnerRole() bool {
	return u.Role == RoleOwner
}
