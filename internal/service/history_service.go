package service

import (
	"context"
	"fmt"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/google/uuid"
)

// HistoryService 历史日志服务。
// 日志只追加；除软删除字段外创建后不可变更；物理删除只由审批删除级联触发。
type HistoryService struct {
	logRepo  *repository.HistoryLogRepository
	userRepo *repository.UserRepository
}

func NewHistoryService(logRepo *repository.HistoryLogRepository, userRepo *repository.UserRepository) *HistoryService {
	return &HistoryService{logRepo: logRepo, userRepo: userRepo}
}

// CreateLogReq 手动日志创建参数
type CreateLogReq struct {
	ProjectID    string          `json:"project_id" binding:"required"`
	TargetUserID *string         `json:"target_user_id"`
	Category     string          `json:"category"`
	Content      string          `json:"content" binding:"required"`
	Attachments  []AttachmentReq `json:"attachments"`
}

// CreateManualLog 追加手动日志
func (s *HistoryService) CreateManualLog(ctx context.Context, req CreateLogReq, authorID string) (*entity.HistoryLog, error) {
	author, err := s.userRepo.FindByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("查找作者失败: %w", err)
	}

	category := req.Category
	if category == "" {
		category = entity.LogCategoryGeneral
	}

	now := time.Now()
	entry := &entity.HistoryLog{
		ID:           uuid.New().String()[:32],
		ProjectID:    req.ProjectID,
		AuthorID:     author.ID,
		AuthorName:   author.Name,
		TargetUserID: req.TargetUserID,
		Category:     category,
		Content:      req.Content,
		LogType:      entity.LogTypeManual,
		CreatedAt:    now,
	}
	if req.TargetUserID != nil {
		if target, err := s.userRepo.FindByID(ctx, *req.TargetUserID); err == nil {
			entry.TargetUserName = target.Name
		}
	}
	for _, a := range req.Attachments {
		entry.Attachments = append(entry.Attachments, entity.LogAttachment{
			ID:        uuid.New().String()[:32],
			LogID:     entry.ID,
			FileName:  a.FileName,
			FilePath:  a.FilePath,
			FileSize:  a.FileSize,
			MimeType:  a.MimeType,
			CreatedAt: now,
		})
	}

	if err := s.logRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("写历史日志失败: %w", err)
	}
	return entry, nil
}

// ListProjectLogs 项目日志列表
func (s *HistoryService) ListProjectLogs(ctx context.Context, projectID string, page, pageSize int, includeDeleted bool) ([]entity.HistoryLog, int64, error) {
	return s.logRepo.FindByProject(ctx, projectID, page, pageSize, includeDeleted)
}

// DeleteLog 软删除日志：仅作者本人或管理员可删
func (s *HistoryService) DeleteLog(ctx context.Context, logID, operatorID string, isAdmin bool) error {
	entry, err := s.logRepo.FindByID(ctx, logID)
	if err != nil {
		return err
	}
	if !isAdmin && entry.AuthorID != operatorID {
		return NewValidationError("author", "只有作者本人或管理员可以删除日志")
	}
	return s.logRepo.SoftDelete(ctx, logID, operatorID)
}
