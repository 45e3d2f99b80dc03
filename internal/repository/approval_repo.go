package repository

import (
	"context"
	"errors"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"gorm.io/gorm"
)

// ApprovalRepository 审批请求仓库
type ApprovalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// FindAll 查询审批请求列表
func (r *ApprovalRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ApprovalRequest, int64, error) {
	var items []entity.ApprovalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ApprovalRequest{})

	if projectID := filters["project_id"]; projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if approverID := filters["approver_id"]; approverID != "" {
		query = query.Where("approver_id = ?", approverID)
	}
	if requesterID := filters["requester_id"]; requesterID != "" {
		query = query.Where("requester_id = ?", requesterID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Project").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找审批请求
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	var req entity.ApprovalRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// Create 创建审批请求
func (r *ApprovalRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Resolve 以比较并交换方式落终态：只有仍处于pending的行才会被更新。
// 返回是否真正写入（false表示已被其他响应抢先处理）。
func (r *ApprovalRepository) Resolve(ctx context.Context, id, status, responseMemo string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&entity.ApprovalRequest{}).
		Where("id = ? AND status = ?", id, entity.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":        status,
			"response_memo": responseMemo,
			"responded_at":  now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetHistoryLogID 回写发起日志ID
func (r *ApprovalRepository) SetHistoryLogID(ctx context.Context, id, logID string) error {
	return r.db.WithContext(ctx).Model(&entity.ApprovalRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"history_log_id": logID,
			"updated_at":     time.Now(),
		}).Error
}

// SetResponseLogID 回写触发器生成的响应日志ID
func (r *ApprovalRepository) SetResponseLogID(ctx context.Context, id, logID string) error {
	return r.db.WithContext(ctx).Model(&entity.ApprovalRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"response_log_id": logID,
			"updated_at":      time.Now(),
		}).Error
}

// HardDelete 物理删除审批请求行
func (r *ApprovalRepository) HardDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.ApprovalRequest{}).Error
}

// CountPendingByApprover 统计某审批人的待处理数
func (r *ApprovalRepository) CountPendingByApprover(ctx context.Context, approverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ApprovalRequest{}).
		Where("approver_id = ? AND status = ?", approverID, entity.ApprovalStatusPending).
		Count(&count).Error
	return count, err
}
