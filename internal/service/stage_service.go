package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/sse"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StageService 工序生命周期服务。
// 负责工序状态流转、强制日期校验、进度计算以及当前工序指针的重算。
type StageService struct {
	stageRepo   *repository.StageRepository
	projectRepo *repository.ProjectRepository
	logRepo     *repository.HistoryLogRepository
	rdb         *redis.Client
}

func NewStageService(
	stageRepo *repository.StageRepository,
	projectRepo *repository.ProjectRepository,
	logRepo *repository.HistoryLogRepository,
	rdb *redis.Client,
) *StageService {
	return &StageService{
		stageRepo:   stageRepo,
		projectRepo: projectRepo,
		logRepo:     logRepo,
		rdb:         rdb,
	}
}

// StageInit 创建项目时的工序初始值（可选覆盖默认状态）
type StageInit struct {
	StageName   string     `json:"stage_name" binding:"required"`
	Status      string     `json:"status"`
	DelayReason string     `json:"delay_reason"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// BuildDefaultStages 构造14道工序的初始记录。
// 默认全部waiting，合同工序in_progress；调用方传入overrides时按传入值覆盖。
func BuildDefaultStages(projectID string, overrides []StageInit) []entity.ProcessStage {
	byName := make(map[string]StageInit, len(overrides))
	for _, o := range overrides {
		byName[o.StageName] = o
	}

	now := time.Now()
	stages := make([]entity.ProcessStage, 0, entity.StageCount)
	for i, name := range entity.StageSequence {
		stage := entity.ProcessStage{
			ID:         uuid.New().String()[:32],
			ProjectID:  projectID,
			StageName:  name,
			StageOrder: i + 1,
			Status:     entity.StageStatusWaiting,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if len(overrides) == 0 {
			// 无显式初始值时合同工序直接开工
			if name == entity.StageContract {
				stage.Status = entity.StageStatusInProgress
			}
		} else if o, ok := byName[name]; ok {
			if o.Status != "" {
				stage.Status = o.Status
			}
			stage.DelayReason = o.DelayReason
			stage.StartDate = o.StartDate
			stage.EndDate = o.EndDate
		}
		stages = append(stages, stage)
	}
	return stages
}

// ValidateStageSet 项目保存前的整体校验：
// 工序集必须完整且顺序固定；合同和完了工序必须有起止日期；
// 至少一道工序必须为in_progress或completed。
func ValidateStageSet(stages []entity.ProcessStage) error {
	if len(stages) != entity.StageCount {
		return NewValidationError("stages", fmt.Sprintf("工序数必须为%d，当前%d", entity.StageCount, len(stages)))
	}

	seen := make(map[string]bool, entity.StageCount)
	hasActive := false
	for _, s := range stages {
		order := entity.StageOrderOf(s.StageName)
		if order == 0 {
			return NewValidationError("stage_name", "未知工序: "+s.StageName)
		}
		if s.StageOrder != order {
			return NewValidationError("stage_order", fmt.Sprintf("工序%s顺序应为%d，当前%d", s.StageName, order, s.StageOrder))
		}
		if seen[s.StageName] {
			return NewValidationError("stage_name", "工序重复: "+s.StageName)
		}
		seen[s.StageName] = true

		if !entity.IsValidStageStatus(s.Status) {
			return NewValidationError("status", "无效工序状态: "+s.Status)
		}
		if s.Status == entity.StageStatusInProgress || s.Status == entity.StageStatusCompleted {
			hasActive = true
		}

		if s.StageName == entity.StageContract || s.StageName == entity.StageCompletion {
			if s.StartDate == nil || s.EndDate == nil {
				return NewValidationError(s.StageName, "合同和完了工序必须填写开始与结束日期")
			}
		}
	}

	if !hasActive {
		return NewValidationError("stages", "至少需要一道工序处于进行中或已完成状态")
	}
	return nil
}

// UpdateStagePatch 单工序更新字段（nil表示不修改）
type UpdateStagePatch struct {
	Status          *string    `json:"status"`
	DelayReason     *string    `json:"delay_reason"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	ActualStartDate *time.Time `json:"actual_start_date"`
	ActualEndDate   *time.Time `json:"actual_end_date"`
}

// UpdateStage 更新单个工序并重算项目当前工序指针。
// 状态离开delayed时自动清空延期原因；合同/完了工序不允许清掉起止日期。
func (s *StageService) UpdateStage(ctx context.Context, projectID, stageName string, patch UpdateStagePatch, operatorID, operatorName string) (*entity.ProcessStage, error) {
	if !entity.IsValidStageName(stageName) {
		return nil, NewValidationError("stage_name", "未知工序: "+stageName)
	}
	if patch.Status != nil && !entity.IsValidStageStatus(*patch.Status) {
		return nil, NewValidationError("status", "无效工序状态: "+*patch.Status)
	}

	stage, err := s.stageRepo.FindByProjectAndName(ctx, projectID, stageName)
	if err != nil {
		return nil, err
	}

	oldStatus := stage.Status

	if patch.Status != nil {
		stage.Status = *patch.Status
	}
	if patch.DelayReason != nil {
		stage.DelayReason = *patch.DelayReason
	}
	if patch.StartDate != nil {
		stage.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		stage.EndDate = patch.EndDate
	}
	if patch.ActualStartDate != nil {
		stage.ActualStartDate = patch.ActualStartDate
	}
	if patch.ActualEndDate != nil {
		stage.ActualEndDate = patch.ActualEndDate
	}

	// 离开delayed状态时清空延期原因
	if oldStatus == entity.StageStatusDelayed && stage.Status != entity.StageStatusDelayed {
		stage.DelayReason = ""
	}

	// 合同/完了工序的起止日期为强制项，更新后不允许缺失
	if stageName == entity.StageContract || stageName == entity.StageCompletion {
		if stage.StartDate == nil || stage.EndDate == nil {
			return nil, NewValidationError(stageName, "合同和完了工序必须填写开始与结束日期")
		}
	}

	stage.UpdatedAt = time.Now()
	if err := s.stageRepo.Update(ctx, stage); err != nil {
		return nil, fmt.Errorf("更新工序失败: %w", err)
	}

	// 状态变更写历史日志（尽力而为，失败只记日志）
	if stage.Status != oldStatus {
		s.appendStageLog(ctx, projectID, stage, oldStatus, operatorID, operatorName)
	}

	// 重算当前工序指针
	if err := s.RecomputeCurrentStage(ctx, projectID); err != nil {
		log.Printf("[StageService] 重算当前工序失败 (project=%s): %v", projectID, err)
	}

	s.invalidateDashboardCache(ctx)
	go sse.PublishStageUpdate(projectID, stageName, "stage_updated")

	return stage, nil
}

// MoveToNextStage 把最前面一道进行中的工序标记为完成，并启动下一道。
// 项目不存在时返回ErrNotFound；无进行中工序时返回nil（不视为错误）；
// 已是最后一道时完成提交、启动跳过。
func (s *StageService) MoveToNextStage(ctx context.Context, projectID, operatorID, operatorName string) (*entity.ProcessStage, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, err
	}

	stages, err := s.stageRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var current *entity.ProcessStage
	for i := range stages {
		if stages[i].Status == entity.StageStatusInProgress {
			current = &stages[i]
			break
		}
	}
	if current == nil {
		return nil, nil
	}

	today := time.Now()

	// 第一步：完成当前工序。此写入独立提交，后续失败不回滚。
	oldStatus := current.Status
	current.Status = entity.StageStatusCompleted
	current.ActualEndDate = &today
	current.DelayReason = ""
	current.UpdatedAt = today
	if err := s.stageRepo.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("完成工序失败: %w", err)
	}
	s.appendStageLog(ctx, projectID, current, oldStatus, operatorID, operatorName)

	// 第二步：启动下一道工序（存在时）
	var next *entity.ProcessStage
	for i := range stages {
		if stages[i].StageOrder == current.StageOrder+1 {
			next = &stages[i]
			break
		}
	}
	if next == nil {
		// 最后一道已完成，全部工序结束
		if err := s.RecomputeCurrentStage(ctx, projectID); err != nil {
			log.Printf("[StageService] 重算当前工序失败 (project=%s): %v", projectID, err)
		}
		s.invalidateDashboardCache(ctx)
		go sse.PublishStageUpdate(projectID, current.StageName, "stage_completed")
		return nil, nil
	}

	nextOld := next.Status
	next.Status = entity.StageStatusInProgress
	next.ActualStartDate = &today
	next.UpdatedAt = today
	if err := s.stageRepo.Update(ctx, next); err != nil {
		// 第一步写入已提交，不回滚
		return nil, fmt.Errorf("启动下一道工序失败: %w", err)
	}
	s.appendStageLog(ctx, projectID, next, nextOld, operatorID, operatorName)

	if err := s.RecomputeCurrentStage(ctx, projectID); err != nil {
		log.Printf("[StageService] 重算当前工序失败 (project=%s): %v", projectID, err)
	}
	s.invalidateDashboardCache(ctx)
	go sse.PublishStageUpdate(projectID, next.StageName, "stage_advanced")

	return next, nil
}

// ResolveCurrentStage 当前工序判定：取进行中/延期工序里顺序最小的一道。
// 没有匹配时返回false，指针保持原值（允许短暂的陈旧指针）。
func ResolveCurrentStage(stages []entity.ProcessStage) (string, bool) {
	best := ""
	bestOrder := entity.StageCount + 1
	for _, s := range stages {
		if s.IsActive() && s.StageOrder < bestOrder {
			best = s.StageName
			bestOrder = s.StageOrder
		}
	}
	return best, best != ""
}

// RecomputeCurrentStage 读取全部工序重算指针并写回项目。
// 幂等且无额外副作用，并发更新时以最后一次写入为准。
func (s *StageService) RecomputeCurrentStage(ctx context.Context, projectID string) error {
	stages, err := s.stageRepo.FindByProject(ctx, projectID)
	if err != nil {
		return err
	}
	name, ok := ResolveCurrentStage(stages)
	if !ok {
		return nil
	}
	return s.projectRepo.UpdateCurrentStage(ctx, projectID, name)
}

// ComputeProgress 进度百分比 = round(已完成 / 14 * 100)，纯推导值
func ComputeProgress(stages []entity.ProcessStage) int {
	completed := 0
	for _, s := range stages {
		if s.Status == entity.StageStatusCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(entity.StageCount) * 100))
}

// GetStages 查询项目工序列表
func (s *StageService) GetStages(ctx context.Context, projectID string) ([]entity.ProcessStage, error) {
	return s.stageRepo.FindByProject(ctx, projectID)
}

// appendStageLog 工序状态变更写历史日志，失败不阻塞主流程
func (s *StageService) appendStageLog(ctx context.Context, projectID string, stage *entity.ProcessStage, fromStatus, operatorID, operatorName string) {
	entry := &entity.HistoryLog{
		ID:         uuid.New().String()[:32],
		ProjectID:  projectID,
		AuthorID:   operatorID,
		AuthorName: operatorName,
		Category:   entity.LogCategoryStage,
		Content:    fmt.Sprintf("工序[%s]状态变更: %s → %s", stage.StageName, fromStatus, stage.Status),
		LogType:    entity.LogTypeManual,
		Metadata: entity.JSONB{
			"stage_name":  stage.StageName,
			"stage_order": stage.StageOrder,
			"from_status": fromStatus,
			"to_status":   stage.Status,
		},
		CreatedAt: time.Now(),
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		log.Printf("[StageService] 写工序日志失败 (project=%s stage=%s): %v", projectID, stage.StageName, err)
	}
}

// invalidateDashboardCache 工序变化后让仪表盘统计缓存失效
func (s *StageService) invalidateDashboardCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, dashboardCacheKey).Err(); err != nil && err != redis.Nil {
		log.Printf("[StageService] 清理仪表盘缓存失败: %v", err)
	}
}
