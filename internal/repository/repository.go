package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User         *UserRepository
	Project      *ProjectRepository
	Stage        *StageRepository
	Approval     *ApprovalRepository
	HistoryLog   *HistoryLogRepository
	Notification *NotificationRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Project:      NewProjectRepository(db),
		Stage:        NewStageRepository(db),
		Approval:     NewApprovalRepository(db),
		HistoryLog:   NewHistoryLogRepository(db),
		Notification: NewNotificationRepository(db),
	}
}
