package repository

import (
	"context"
	"errors"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"gorm.io/gorm"
)

// StageRepository 工序仓库
type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

// FindByProject 查询项目的全部工序（按顺序）
func (r *StageRepository) FindByProject(ctx context.Context, projectID string) ([]entity.ProcessStage, error) {
	var stages []entity.ProcessStage
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("stage_order ASC").
		Find(&stages).Error
	return stages, err
}

// FindByProjectAndName 查询项目的指定工序
func (r *StageRepository) FindByProjectAndName(ctx context.Context, projectID, stageName string) (*entity.ProcessStage, error) {
	var stage entity.ProcessStage
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND stage_name = ?", projectID, stageName).
		First(&stage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stage, nil
}

// Update 更新单个工序
func (r *StageRepository) Update(ctx context.Context, stage *entity.ProcessStage) error {
	return r.db.WithContext(ctx).Save(stage).Error
}
