package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"gorm.io/gorm"
)

// ProjectRepository 项目仓库
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindAll 查询项目列表
func (r *ProjectRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Project, int64, error) {
	var items []entity.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Project{}).Where("deleted_at IS NULL")

	if site := filters["site"]; site != "" {
		query = query.Where("site = ?", site)
	}
	if stage := filters["current_stage"]; stage != "" {
		query = query.Where("current_process_stage = ?", stage)
	}
	if urgent := filters["is_urgent"]; urgent == "true" {
		query = query.Where("is_urgent = true")
	}
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ? OR product_name ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("is_urgent DESC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找项目
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// FindByIDWithStages 查找项目并预加载全部工序
func (r *ProjectRepository) FindByIDWithStages(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// Update 更新项目
func (r *ProjectRepository) Update(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

// UpdateCurrentStage 只更新当前工序指针
func (r *ProjectRepository) UpdateCurrentStage(ctx context.Context, projectID, stageName string) error {
	return r.db.WithContext(ctx).Model(&entity.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]interface{}{
			"current_process_stage": stageName,
			"updated_at":            time.Now(),
		}).Error
}

// SoftDelete 软删除项目
func (r *ProjectRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entity.Project{}).
		Where("id = ?", id).
		Update("deleted_at", now).Error
}

// GenerateCode 生成项目编码 PRJ-YYYY-NNNN
func (r *ProjectRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("PRJ-%d-", year)

	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Project{}).
		Where("code LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// CountByCurrentStage 按当前工序统计项目数（仪表盘用）
func (r *ProjectRepository) CountByCurrentStage(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Stage string
		Count int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&entity.Project{}).
		Select("current_process_stage AS stage, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("current_process_stage").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Stage] = r.Count
	}
	return counts, nil
}

// CountUrgent 统计加急项目数
func (r *ProjectRepository) CountUrgent(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Project{}).
		Where("deleted_at IS NULL AND is_urgent = true").
		Count(&count).Error
	return count, err
}
