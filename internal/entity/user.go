package entity

import "time"

// User 用户实体。注册后处于pending，管理员批准后才能登录。
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	Email        string     `json:"email" gorm:"size:128;not null;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Phone        string     `json:"phone" gorm:"size:20"`
	Role         string     `json:"role" gorm:"size:16;not null;default:user"`
	IsApproved   bool       `json:"is_approved" gorm:"default:false"`
	ApprovedBy   *string    `json:"approved_by" gorm:"size:32"`
	ApprovedAt   *time.Time `json:"approved_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// 用户角色
const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)
