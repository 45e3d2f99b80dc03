package repository

import (
	"context"
	"errors"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"gorm.io/gorm"
)

// HistoryLogRepository 历史日志仓库，只追加 + 软删除
type HistoryLogRepository struct {
	db *gorm.DB
}

func NewHistoryLogRepository(db *gorm.DB) *HistoryLogRepository {
	return &HistoryLogRepository{db: db}
}

// Create 追加日志（含附件）
func (r *HistoryLogRepository) Create(ctx context.Context, log *entity.HistoryLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByID 根据ID查找日志
func (r *HistoryLogRepository) FindByID(ctx context.Context, id string) (*entity.HistoryLog, error) {
	var log entity.HistoryLog
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("id = ?", id).
		First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

// FindByProject 查询项目日志（created_at倒序，偏移分页，默认排除已软删除）
func (r *HistoryLogRepository) FindByProject(ctx context.Context, projectID string, page, pageSize int, includeDeleted bool) ([]entity.HistoryLog, int64, error) {
	var items []entity.HistoryLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.HistoryLog{}).
		Where("project_id = ?", projectID)
	if !includeDeleted {
		query = query.Where("is_deleted = false")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Attachments").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// SoftDelete 软删除日志，内容保留作审计
func (r *HistoryLogRepository) SoftDelete(ctx context.Context, id, deletedBy string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&entity.HistoryLog{}).
		Where("id = ? AND is_deleted = false", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_by": deletedBy,
			"deleted_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDelete 物理删除日志及其附件行。仅供审批请求删除级联使用。
func (r *HistoryLogRepository) HardDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("log_id = ?", id).Delete(&entity.LogAttachment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entity.HistoryLog{}).Error
	})
}

// FindResponseLog 按(项目, 审批人→发起人, 类型)弱匹配查找审批响应日志。
// 没有外键可用，取时间窗内最新一条。
func (r *HistoryLogRepository) FindResponseLog(ctx context.Context, projectID, approverID, requesterID string, since time.Time) (*entity.HistoryLog, error) {
	var log entity.HistoryLog
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND author_id = ? AND target_user_id = ? AND log_type = ? AND is_deleted = false AND created_at >= ?",
			projectID, approverID, requesterID, entity.LogTypeApprovalResponse, since).
		Order("created_at DESC").
		First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}
