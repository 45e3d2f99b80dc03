package service

import (
	"context"
	"log"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/mailer"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/sse"
	"github.com/google/uuid"
)

// NotificationService 通知分发服务。
// 站内通知 + SSE推送 + 邮件，全部fire-and-forget：失败写服务端日志，不上抛。
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	projectRepo      *repository.ProjectRepository
	mail             *mailer.Mailer
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	projectRepo *repository.ProjectRepository,
	mail *mailer.Mailer,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		projectRepo:      projectRepo,
		mail:             mail,
	}
}

// Dispatch 写入站内通知并推送SSE
func (s *NotificationService) Dispatch(ctx context.Context, userID, title, message, ntype string, relatedID, relatedType *string) {
	n := &entity.Notification{
		ID:          uuid.New().String()[:32],
		UserID:      userID,
		Title:       title,
		Message:     message,
		Type:        ntype,
		RelatedID:   relatedID,
		RelatedType: relatedType,
		CreatedAt:   time.Now(),
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		log.Printf("[NotificationService] 写站内通知失败 (user=%s type=%s): %v", userID, ntype, err)
		return
	}
	go sse.PublishNotification(userID, n.ID, ntype)
}

// NotifyApprovalCreated 审批创建：通知审批人
func (s *NotificationService) NotifyApprovalCreated(ctx context.Context, approval *entity.ApprovalRequest) {
	projectName := s.projectName(ctx, approval.ProjectID)
	relatedType := "approval_request"

	s.Dispatch(ctx, approval.ApproverID,
		"新审批请求",
		approval.RequesterName+" 发起了项目 "+projectName+" 的审批请求",
		entity.NotificationTypeApprovalCreated,
		&approval.ID, &relatedType)

	if s.mail == nil {
		return
	}
	approver, err := s.userRepo.FindByID(ctx, approval.ApproverID)
	if err != nil {
		log.Printf("[NotificationService] 查找审批人失败 (user=%s): %v", approval.ApproverID, err)
		return
	}
	if err := s.mail.SendApprovalCreated(approver.Email, approval.RequesterName, projectName, approval.Memo); err != nil {
		log.Printf("[NotificationService] %v", err)
	}
}

// NotifyApprovalResolved 审批终态：通知发起人
func (s *NotificationService) NotifyApprovalResolved(ctx context.Context, approval *entity.ApprovalRequest) {
	projectName := s.projectName(ctx, approval.ProjectID)
	relatedType := "approval_request"

	resultText := "通过"
	if approval.Status == entity.ApprovalStatusRejected {
		resultText = "驳回"
	}
	s.Dispatch(ctx, approval.RequesterID,
		"审批"+resultText,
		approval.ApproverName+" 已"+resultText+"您在项目 "+projectName+" 的审批请求",
		entity.NotificationTypeApprovalResolved,
		&approval.ID, &relatedType)

	if s.mail == nil {
		return
	}
	requester, err := s.userRepo.FindByID(ctx, approval.RequesterID)
	if err != nil {
		log.Printf("[NotificationService] 查找发起人失败 (user=%s): %v", approval.RequesterID, err)
		return
	}
	if err := s.mail.SendApprovalResolved(requester.Email, approval.ApproverName, projectName, approval.Status, approval.ResponseMemo); err != nil {
		log.Printf("[NotificationService] %v", err)
	}
}

// NotifyUserApproved 账号批准：通知新用户
func (s *NotificationService) NotifyUserApproved(ctx context.Context, user *entity.User) {
	s.Dispatch(ctx, user.ID,
		"账号已批准",
		"您的账号已由管理员批准，现在可以使用全部功能",
		entity.NotificationTypeUserApproved,
		nil, nil)

	if s.mail == nil {
		return
	}
	if err := s.mail.SendUserApproved(user.Email, user.Name); err != nil {
		log.Printf("[NotificationService] %v", err)
	}
}

// ListNotifications 用户通知列表
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]entity.Notification, int64, error) {
	return s.notificationRepo.FindByUser(ctx, userID, page, pageSize, unreadOnly)
}

// MarkRead 标记已读
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.notificationRepo.MarkRead(ctx, id, userID)
}

// MarkAllRead 全部已读
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

// PruneRead 清理指定保留期之前的已读通知
func (s *NotificationService) PruneRead(ctx context.Context, retention time.Duration) (int64, error) {
	return s.notificationRepo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}

// CountUnread 未读数
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

func (s *NotificationService) projectName(ctx context.Context, projectID string) string {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return projectID
	}
	return project.Name
}
