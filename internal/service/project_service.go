package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/sse"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 仪表盘统计缓存键，工序或项目变化时失效
const (
	dashboardCacheKey = "dashboard:stage_summary"
	dashboardCacheTTL = 5 * time.Minute
)

// ProjectService 项目服务
type ProjectService struct {
	projectRepo *repository.ProjectRepository
	stageRepo   *repository.StageRepository
	stageSvc    *StageService
	rdb         *redis.Client
	db          *gorm.DB
}

func NewProjectService(
	projectRepo *repository.ProjectRepository,
	stageRepo *repository.StageRepository,
	stageSvc *StageService,
	rdb *redis.Client,
	db *gorm.DB,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		stageRepo:   stageRepo,
		stageSvc:    stageSvc,
		rdb:         rdb,
		db:          db,
	}
}

// CreateProjectReq 创建项目请求
type CreateProjectReq struct {
	Name               string      `json:"name" binding:"required"`
	Site               string      `json:"site"`
	ProductName        string      `json:"product_name"`
	ProductNumber      string      `json:"product_number"`
	OrderDate          *time.Time  `json:"order_date"`
	ExpectedCompletion *time.Time  `json:"expected_completion_date"`
	IsUrgent           bool        `json:"is_urgent"`
	Memo               string      `json:"memo"`
	Stages             []StageInit `json:"stages"`
}

// CreateProject 创建项目并批量生成14道工序。
// 保存前先做整体校验，校验失败不产生任何写入。
func (s *ProjectService) CreateProject(ctx context.Context, userID string, req *CreateProjectReq) (*entity.Project, error) {
	projectID := uuid.New().String()[:32]
	stages := BuildDefaultStages(projectID, req.Stages)

	// 无显式工序初始值时，合同/完了日期由项目日期兜底
	if len(req.Stages) == 0 {
		for i := range stages {
			if stages[i].StageName == entity.StageContract || stages[i].StageName == entity.StageCompletion {
				stages[i].StartDate = req.OrderDate
				stages[i].EndDate = req.ExpectedCompletion
			}
		}
	}

	if err := ValidateStageSet(stages); err != nil {
		return nil, err
	}

	code, err := s.projectRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成项目编码失败: %w", err)
	}

	currentStage, ok := ResolveCurrentStage(stages)
	if !ok {
		currentStage = entity.StageContract
	}

	now := time.Now()
	project := &entity.Project{
		ID:                  projectID,
		Code:                code,
		Name:                req.Name,
		Site:                req.Site,
		ProductName:         req.ProductName,
		ProductNumber:       req.ProductNumber,
		OrderDate:           req.OrderDate,
		ExpectedCompletion:  req.ExpectedCompletion,
		CurrentProcessStage: currentStage,
		IsUrgent:            req.IsUrgent,
		Memo:                req.Memo,
		CreatedBy:           userID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// 项目行和14道工序一次事务写入
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		return tx.Create(&stages).Error
	})
	if err != nil {
		return nil, fmt.Errorf("创建项目失败: %w", err)
	}

	project.Stages = stages
	s.invalidateDashboardCache(ctx)
	go sse.PublishStageUpdate(project.ID, currentStage, "project_created")

	return project, nil
}

// UpdateProjectReq 更新项目请求
type UpdateProjectReq struct {
	Name               *string    `json:"name"`
	Site               *string    `json:"site"`
	ProductName        *string    `json:"product_name"`
	ProductNumber      *string    `json:"product_number"`
	OrderDate          *time.Time `json:"order_date"`
	ExpectedCompletion *time.Time `json:"expected_completion_date"`
	IsUrgent           *bool      `json:"is_urgent"`
	Memo               *string    `json:"memo"`
}

// UpdateProject 更新项目固定属性。保存前复查工序整体约束。
func (s *ProjectService) UpdateProject(ctx context.Context, id string, req *UpdateProjectReq) (*entity.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stages, err := s.stageRepo.FindByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateStageSet(stages); err != nil {
		return nil, err
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Site != nil {
		project.Site = *req.Site
	}
	if req.ProductName != nil {
		project.ProductName = *req.ProductName
	}
	if req.ProductNumber != nil {
		project.ProductNumber = *req.ProductNumber
	}
	if req.OrderDate != nil {
		project.OrderDate = req.OrderDate
	}
	if req.ExpectedCompletion != nil {
		project.ExpectedCompletion = req.ExpectedCompletion
	}
	if req.IsUrgent != nil {
		project.IsUrgent = *req.IsUrgent
	}
	if req.Memo != nil {
		project.Memo = *req.Memo
	}
	project.UpdatedAt = time.Now()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("更新项目失败: %w", err)
	}

	s.invalidateDashboardCache(ctx)
	return project, nil
}

// GetProject 项目详情（含工序和推导进度）
func (s *ProjectService) GetProject(ctx context.Context, id string) (*entity.Project, int, error) {
	project, err := s.projectRepo.FindByIDWithStages(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return project, ComputeProgress(project.Stages), nil
}

// ListProjects 项目列表
func (s *ProjectService) ListProjects(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Project, int64, error) {
	return s.projectRepo.FindAll(ctx, page, pageSize, filters)
}

// DeleteProject 软删除项目
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.projectRepo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.projectRepo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("删除项目失败: %w", err)
	}
	s.invalidateDashboardCache(ctx)
	return nil
}

// DashboardSummary 仪表盘统计
type DashboardSummary struct {
	StageCounts map[string]int64 `json:"stage_counts"`
	UrgentCount int64            `json:"urgent_count"`
	TotalCount  int64            `json:"total_count"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// GetDashboardSummary 按当前工序统计项目分布，redis缓存5分钟
func (s *ProjectService) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, dashboardCacheKey).Result(); err == nil {
			var summary DashboardSummary
			if err := json.Unmarshal([]byte(cached), &summary); err == nil {
				return &summary, nil
			}
		}
	}

	counts, err := s.projectRepo.CountByCurrentStage(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计项目分布失败: %w", err)
	}
	urgent, err := s.projectRepo.CountUrgent(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计加急项目失败: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	summary := &DashboardSummary{
		StageCounts: counts,
		UrgentCount: urgent,
		TotalCount:  total,
		GeneratedAt: time.Now(),
	}

	if s.rdb != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.rdb.Set(ctx, dashboardCacheKey, data, dashboardCacheTTL).Err(); err != nil {
				log.Printf("[ProjectService] 写仪表盘缓存失败: %v", err)
			}
		}
	}

	return summary, nil
}

func (s *ProjectService) invalidateDashboardCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, dashboardCacheKey).Err(); err != nil && err != redis.Nil {
		log.Printf("[ProjectService] 清理仪表盘缓存失败: %v", err)
	}
}
