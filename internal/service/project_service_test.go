package service

import (
	"context"
	"testing"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/testutil"
	"gorm.io/gorm"
)

func setupProjectTest(t *testing.T) (*gorm.DB, *ProjectService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	stageSvc := NewStageService(repos.Stage, repos.Project, repos.HistoryLog, nil)
	svc := NewProjectService(repos.Project, repos.Stage, stageSvc, nil, db)
	testutil.SeedTestUser(t, db, "pm-001", "项目负责人", "pm@test.com")
	return db, svc
}

// TestCreateProjectDefaults verifies a new project gets the full stage set,
// a generated code and the contract stage as current.
func TestCreateProjectDefaults(t *testing.T) {
	db, svc := setupProjectTest(t)
	ctx := context.Background()

	order := time.Now()
	due := order.AddDate(0, 3, 0)
	project, err := svc.CreateProject(ctx, "pm-001", &CreateProjectReq{
		Name:               "控制柜外协",
		Site:               "大阪工厂",
		ProductName:        "控制柜",
		ProductNumber:      "CTRL-2026-A",
		OrderDate:          &order,
		ExpectedCompletion: &due,
		IsUrgent:           true,
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}

	if project.Code == "" {
		t.Fatal("expected generated project code")
	}
	if project.CurrentProcessStage != entity.StageContract {
		t.Fatalf("expected current stage contract, got %s", project.CurrentProcessStage)
	}
	if len(project.Stages) != entity.StageCount {
		t.Fatalf("expected %d stages, got %d", entity.StageCount, len(project.Stages))
	}

	var count int64
	db.Model(&entity.ProcessStage{}).Where("project_id = ?", project.ID).Count(&count)
	if count != int64(entity.StageCount) {
		t.Fatalf("expected %d stage rows, got %d", entity.StageCount, count)
	}
}

// TestCreateProjectValidationNoWrite verifies an invalid stage set leaves
// nothing behind.
func TestCreateProjectValidationNoWrite(t *testing.T) {
	db, svc := setupProjectTest(t)

	// 无订单/完了日期时合同工序缺强制日期
	_, err := svc.CreateProject(context.Background(), "pm-001", &CreateProjectReq{
		Name: "缺日期项目",
	})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var count int64
	db.Model(&entity.Project{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no project rows, got %d", count)
	}
	db.Model(&entity.ProcessStage{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no stage rows, got %d", count)
	}
}

// TestGetProjectProgress verifies derived progress over the stage set.
func TestGetProjectProgress(t *testing.T) {
	db, svc := setupProjectTest(t)
	ctx := context.Background()

	order := time.Now()
	due := order.AddDate(0, 1, 0)
	project, err := svc.CreateProject(ctx, "pm-001", &CreateProjectReq{
		Name:               "进度项目",
		OrderDate:          &order,
		ExpectedCompletion: &due,
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}

	db.Model(&entity.ProcessStage{}).
		Where("project_id = ? AND stage_order <= 7", project.ID).
		Update("status", entity.StageStatusCompleted)

	_, progress, err := svc.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("get project failed: %v", err)
	}
	if progress != 50 {
		t.Fatalf("expected 50%% progress, got %d", progress)
	}
}

// TestDashboardSummary verifies the per-stage distribution counters.
func TestDashboardSummary(t *testing.T) {
	db, svc := setupProjectTest(t)
	ctx := context.Background()

	order := time.Now()
	due := order.AddDate(0, 1, 0)
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateProject(ctx, "pm-001", &CreateProjectReq{
			Name:               "统计项目",
			OrderDate:          &order,
			ExpectedCompletion: &due,
			IsUrgent:           i == 0,
		}); err != nil {
			t.Fatalf("create project %d failed: %v", i, err)
		}
	}

	summary, err := svc.GetDashboardSummary(ctx)
	if err != nil {
		t.Fatalf("dashboard summary failed: %v", err)
	}
	if summary.TotalCount != 2 {
		t.Fatalf("expected total 2, got %d", summary.TotalCount)
	}
	if summary.StageCounts[entity.StageContract] != 2 {
		t.Fatalf("expected 2 projects at contract, got %d", summary.StageCounts[entity.StageContract])
	}
	if summary.UrgentCount != 1 {
		t.Fatalf("expected 1 urgent, got %d", summary.UrgentCount)
	}

	// 软删除后统计应变化
	var first entity.Project
	db.Order("created_at ASC").First(&first)
	if err := svc.DeleteProject(ctx, first.ID); err != nil {
		t.Fatalf("delete project failed: %v", err)
	}
	summary, err = svc.GetDashboardSummary(ctx)
	if err != nil {
		t.Fatalf("dashboard summary after delete failed: %v", err)
	}
	if summary.TotalCount != 1 {
		t.Fatalf("expected total 1 after delete, got %d", summary.TotalCount)
	}
}
