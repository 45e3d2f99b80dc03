package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/testutil"
	"gorm.io/gorm"
)

func setupStageTest(t *testing.T) (*gorm.DB, *StageService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewStageService(repos.Stage, repos.Project, repos.HistoryLog, nil)
	return db, svc
}

func seedProjectWithStages(t *testing.T, db *gorm.DB, projectID string) []entity.ProcessStage {
	t.Helper()
	testutil.SeedTestUser(t, db, "user-stage-001", "工序测试员", "stage@test.com")
	testutil.SeedTestProject(t, db, projectID, "工序测试项目", "user-stage-001")

	today := time.Now()
	stages := BuildDefaultStages(projectID, nil)
	for i := range stages {
		if stages[i].StageName == entity.StageContract || stages[i].StageName == entity.StageCompletion {
			stages[i].StartDate = &today
			stages[i].EndDate = &today
		}
	}
	if err := db.Create(&stages).Error; err != nil {
		t.Fatalf("Failed to seed stages: %v", err)
	}
	return stages
}

// TestBuildDefaultStages verifies the fixed fourteen step sequence and the
// contract stage starting in progress.
func TestBuildDefaultStages(t *testing.T) {
	stages := BuildDefaultStages("proj-x", nil)
	if len(stages) != entity.StageCount {
		t.Fatalf("expected %d stages, got %d", entity.StageCount, len(stages))
	}
	for i, s := range stages {
		if s.StageName != entity.StageSequence[i] {
			t.Fatalf("stage %d: expected %s, got %s", i, entity.StageSequence[i], s.StageName)
		}
		if s.StageOrder != i+1 {
			t.Fatalf("stage %s: expected order %d, got %d", s.StageName, i+1, s.StageOrder)
		}
	}
	if stages[0].Status != entity.StageStatusInProgress {
		t.Fatalf("expected contract stage in_progress, got %s", stages[0].Status)
	}
	for _, s := range stages[1:] {
		if s.Status != entity.StageStatusWaiting {
			t.Fatalf("expected %s waiting, got %s", s.StageName, s.Status)
		}
	}
}

// TestValidateStageSet covers the whole-set constraints.
func TestValidateStageSet(t *testing.T) {
	today := time.Now()
	valid := func() []entity.ProcessStage {
		stages := BuildDefaultStages("proj-v", nil)
		for i := range stages {
			if stages[i].StageName == entity.StageContract || stages[i].StageName == entity.StageCompletion {
				stages[i].StartDate = &today
				stages[i].EndDate = &today
			}
		}
		return stages
	}

	if err := ValidateStageSet(valid()); err != nil {
		t.Fatalf("expected valid set, got %v", err)
	}

	// 缺少一道工序
	short := valid()[:13]
	if err := ValidateStageSet(short); !IsValidationError(err) {
		t.Fatalf("expected validation error for short set, got %v", err)
	}

	// 顺序错乱
	wrongOrder := valid()
	wrongOrder[3].StageOrder = 99
	if err := ValidateStageSet(wrongOrder); !IsValidationError(err) {
		t.Fatalf("expected validation error for wrong order, got %v", err)
	}

	// 非法状态
	badStatus := valid()
	badStatus[5].Status = "done"
	if err := ValidateStageSet(badStatus); !IsValidationError(err) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}

	// 合同工序缺日期
	noDates := valid()
	noDates[0].StartDate = nil
	if err := ValidateStageSet(noDates); !IsValidationError(err) {
		t.Fatalf("expected validation error for missing contract dates, got %v", err)
	}

	// 全部waiting
	allWaiting := valid()
	allWaiting[0].Status = entity.StageStatusWaiting
	if err := ValidateStageSet(allWaiting); !IsValidationError(err) {
		t.Fatalf("expected validation error for all-waiting set, got %v", err)
	}

	// delayed不算活动状态，仅延期的工序集同样不通过
	delayedOnly := valid()
	delayedOnly[0].Status = entity.StageStatusDelayed
	delayedOnly[0].DelayReason = "供应商延期"
	if err := ValidateStageSet(delayedOnly); !IsValidationError(err) {
		t.Fatalf("expected validation error for delayed-only set, got %v", err)
	}
}

// TestResolveCurrentStage verifies the lowest active stage wins.
func TestResolveCurrentStage(t *testing.T) {
	stages := BuildDefaultStages("proj-r", nil)

	// contract in_progress by default
	name, ok := ResolveCurrentStage(stages)
	if !ok || name != entity.StageContract {
		t.Fatalf("expected contract, got %s ok=%v", name, ok)
	}

	// design delayed + welding in_progress → design wins
	stages[0].Status = entity.StageStatusCompleted
	stages[1].Status = entity.StageStatusDelayed
	stages[6].Status = entity.StageStatusInProgress
	name, ok = ResolveCurrentStage(stages)
	if !ok || name != entity.StageDesign {
		t.Fatalf("expected design, got %s ok=%v", name, ok)
	}

	// 没有活动工序时返回false
	for i := range stages {
		stages[i].Status = entity.StageStatusCompleted
	}
	if _, ok = ResolveCurrentStage(stages); ok {
		t.Fatal("expected no current stage for all-completed set")
	}
}

// TestComputeProgress verifies completed/total rounding.
func TestComputeProgress(t *testing.T) {
	stages := BuildDefaultStages("proj-p", nil)
	if got := ComputeProgress(stages); got != 0 {
		t.Fatalf("expected 0%%, got %d", got)
	}

	stages[0].Status = entity.StageStatusCompleted
	if got := ComputeProgress(stages); got != 7 {
		t.Fatalf("expected 7%% for 1/14, got %d", got)
	}

	for i := 0; i < 7; i++ {
		stages[i].Status = entity.StageStatusCompleted
	}
	if got := ComputeProgress(stages); got != 50 {
		t.Fatalf("expected 50%% for 7/14, got %d", got)
	}

	for i := range stages {
		stages[i].Status = entity.StageStatusCompleted
	}
	if got := ComputeProgress(stages); got != 100 {
		t.Fatalf("expected 100%%, got %d", got)
	}
}

// TestUpdateStageClearsDelayReason verifies delay reason is wiped when a
// stage leaves the delayed status, and the current stage pointer follows.
func TestUpdateStageClearsDelayReason(t *testing.T) {
	db, svc := setupStageTest(t)
	seedProjectWithStages(t, db, "proj-delay-001")
	ctx := context.Background()

	delayed := entity.StageStatusDelayed
	reason := "材料未到"
	if _, err := svc.UpdateStage(ctx, "proj-delay-001", entity.StageDesign, UpdateStagePatch{
		Status:      &delayed,
		DelayReason: &reason,
	}, "user-stage-001", "工序测试员"); err != nil {
		t.Fatalf("delay update failed: %v", err)
	}

	var stage entity.ProcessStage
	db.Where("project_id = ? AND stage_name = ?", "proj-delay-001", entity.StageDesign).First(&stage)
	if stage.Status != entity.StageStatusDelayed || stage.DelayReason != reason {
		t.Fatalf("expected delayed with reason, got %s %q", stage.Status, stage.DelayReason)
	}

	// contract仍在进行中且顺序更小，指针不应移动
	var project entity.Project
	db.Where("id = ?", "proj-delay-001").First(&project)
	if project.CurrentProcessStage != entity.StageContract {
		t.Fatalf("expected current stage contract, got %s", project.CurrentProcessStage)
	}

	inProgress := entity.StageStatusInProgress
	if _, err := svc.UpdateStage(ctx, "proj-delay-001", entity.StageDesign, UpdateStagePatch{
		Status: &inProgress,
	}, "user-stage-001", "工序测试员"); err != nil {
		t.Fatalf("resume update failed: %v", err)
	}

	db.Where("project_id = ? AND stage_name = ?", "proj-delay-001", entity.StageDesign).First(&stage)
	if stage.DelayReason != "" {
		t.Fatalf("expected delay reason cleared, got %q", stage.DelayReason)
	}
}

// TestUpdateStageRequiresContractDates verifies mandatory dates cannot be
// removed from the contract stage.
func TestUpdateStageRequiresContractDates(t *testing.T) {
	db, svc := setupStageTest(t)
	seedProjectWithStages(t, db, "proj-dates-001")

	// 把合同工序日期清掉（补丁无法置nil，直接在库里清空后尝试状态更新）
	db.Model(&entity.ProcessStage{}).
		Where("project_id = ? AND stage_name = ?", "proj-dates-001", entity.StageContract).
		Updates(map[string]interface{}{"start_date": nil, "end_date": nil})

	completed := entity.StageStatusCompleted
	_, err := svc.UpdateStage(context.Background(), "proj-dates-001", entity.StageContract, UpdateStagePatch{
		Status: &completed,
	}, "user-stage-001", "工序测试员")
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for missing contract dates, got %v", err)
	}
}

// TestMoveToNextStageFullRun walks the whole sequence to completion and
// verifies the no-op behavior afterwards.
func TestMoveToNextStageFullRun(t *testing.T) {
	db, svc := setupStageTest(t)
	seedProjectWithStages(t, db, "proj-walk-001")
	ctx := context.Background()

	for i := 0; i < entity.StageCount-1; i++ {
		next, err := svc.MoveToNextStage(ctx, "proj-walk-001", "user-stage-001", "工序测试员")
		if err != nil {
			t.Fatalf("advance %d failed: %v", i, err)
		}
		if next == nil {
			t.Fatalf("advance %d: expected next stage, got nil", i)
		}
		if next.StageName != entity.StageSequence[i+1] {
			t.Fatalf("advance %d: expected %s, got %s", i, entity.StageSequence[i+1], next.StageName)
		}

		var project entity.Project
		db.Where("id = ?", "proj-walk-001").First(&project)
		if project.CurrentProcessStage != next.StageName {
			t.Fatalf("advance %d: current stage pointer %s, expected %s", i, project.CurrentProcessStage, next.StageName)
		}
	}

	// 完成最后一道
	next, err := svc.MoveToNextStage(ctx, "proj-walk-001", "user-stage-001", "工序测试员")
	if err != nil {
		t.Fatalf("final advance failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil after last stage, got %s", next.StageName)
	}

	var count int64
	db.Model(&entity.ProcessStage{}).
		Where("project_id = ? AND status = ?", "proj-walk-001", entity.StageStatusCompleted).
		Count(&count)
	if count != int64(entity.StageCount) {
		t.Fatalf("expected all %d stages completed, got %d", entity.StageCount, count)
	}

	// 再推进一次应无事发生
	next, err = svc.MoveToNextStage(ctx, "proj-walk-001", "user-stage-001", "工序测试员")
	if err != nil || next != nil {
		t.Fatalf("expected no-op advance, got next=%v err=%v", next, err)
	}

	// 指针保持最后一次匹配值（陈旧指针允许存在）
	var project entity.Project
	db.Where("id = ?", "proj-walk-001").First(&project)
	if project.CurrentProcessStage != entity.StageCompletion {
		t.Fatalf("expected pointer to remain %s, got %s", entity.StageCompletion, project.CurrentProcessStage)
	}
}

// TestMoveToNextStageWritesLogs verifies each transition leaves a stage log.
func TestMoveToNextStageWritesLogs(t *testing.T) {
	db, svc := setupStageTest(t)
	seedProjectWithStages(t, db, "proj-log-001")

	if _, err := svc.MoveToNextStage(context.Background(), "proj-log-001", "user-stage-001", "工序测试员"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	var logs []entity.HistoryLog
	db.Where("project_id = ? AND category = ?", "proj-log-001", entity.LogCategoryStage).Find(&logs)
	if len(logs) != 2 {
		t.Fatalf("expected 2 stage logs (complete + start), got %d", len(logs))
	}
}

// TestMoveToNextStageMissingProject verifies a nonexistent project errors
// instead of reading as fully completed.
func TestMoveToNextStageMissingProject(t *testing.T) {
	_, svc := setupStageTest(t)

	_, err := svc.MoveToNextStage(context.Background(), "no-such-project", "user-stage-001", "工序测试员")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
