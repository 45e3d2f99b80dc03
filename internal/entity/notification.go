package entity

import "time"

// Notification 站内通知，纯副作用记录
type Notification struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	UserID      string    `json:"user_id" gorm:"size:32;not null;index"`
	Title       string    `json:"title" gorm:"size:128;not null"`
	Message     string    `json:"message" gorm:"type:text"`
	Type        string    `json:"type" gorm:"size:32;not null"`
	RelatedID   *string   `json:"related_id" gorm:"size:32"`
	RelatedType *string   `json:"related_type" gorm:"size:32"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// 通知类型
const (
	NotificationTypeApprovalCreated  = "approval_created"
	NotificationTypeApprovalResolved = "approval_resolved"
	NotificationTypeUserApproved     = "user_approved"
)
