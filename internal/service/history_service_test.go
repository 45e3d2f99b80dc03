package service

import (
	"context"
	"testing"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/testutil"
	"gorm.io/gorm"
)

func setupHistoryTest(t *testing.T) (*gorm.DB, *HistoryService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewHistoryService(repos.HistoryLog, repos.User)

	testutil.SeedTestUser(t, db, "author-001", "记录人", "author@test.com")
	testutil.SeedTestUser(t, db, "other-001", "旁观者", "other@test.com")
	testutil.SeedTestProject(t, db, "proj-hist-001", "日志测试项目", "author-001")

	return db, svc
}

// TestCreateManualLog verifies the append path with attachments and the
// target user name resolution.
func TestCreateManualLog(t *testing.T) {
	db, svc := setupHistoryTest(t)
	ctx := context.Background()

	target := "other-001"
	entry, err := svc.CreateManualLog(ctx, CreateLogReq{
		ProjectID:    "proj-hist-001",
		TargetUserID: &target,
		Content:      "与现场确认折弯公差",
		Attachments: []AttachmentReq{
			{FileName: "tolerance.xlsx", FilePath: "attachments/t.xlsx", FileSize: 2048, MimeType: "application/vnd.ms-excel"},
		},
	}, "author-001")
	if err != nil {
		t.Fatalf("create log failed: %v", err)
	}

	if entry.LogType != entity.LogTypeManual {
		t.Fatalf("expected manual log type, got %s", entry.LogType)
	}
	if entry.Category != entity.LogCategoryGeneral {
		t.Fatalf("expected default category, got %s", entry.Category)
	}
	if entry.TargetUserName != "旁观者" {
		t.Fatalf("expected target name resolved, got %q", entry.TargetUserName)
	}

	var count int64
	db.Model(&entity.LogAttachment{}).Where("log_id = ?", entry.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 attachment row, got %d", count)
	}
}

// TestDeleteLogPermissions verifies author-or-admin deletion and the
// include_deleted listing flag.
func TestDeleteLogPermissions(t *testing.T) {
	_, svc := setupHistoryTest(t)
	ctx := context.Background()

	entry, err := svc.CreateManualLog(ctx, CreateLogReq{
		ProjectID: "proj-hist-001",
		Content:   "待删除日志",
	}, "author-001")
	if err != nil {
		t.Fatalf("create log failed: %v", err)
	}

	// 他人（非管理员）不可删除
	if err := svc.DeleteLog(ctx, entry.ID, "other-001", false); !IsValidationError(err) {
		t.Fatalf("expected validation error for non-author delete, got %v", err)
	}

	// 作者本人可删除
	if err := svc.DeleteLog(ctx, entry.ID, "author-001", false); err != nil {
		t.Fatalf("author delete failed: %v", err)
	}

	// 默认列表不包含已删除
	logs, total, err := svc.ListProjectLogs(ctx, "proj-hist-001", 1, 20, false)
	if err != nil {
		t.Fatalf("list logs failed: %v", err)
	}
	if total != 0 || len(logs) != 0 {
		t.Fatalf("expected no visible logs, got %d", total)
	}

	// 管理员视图包含已删除
	logs, total, err = svc.ListProjectLogs(ctx, "proj-hist-001", 1, 20, true)
	if err != nil {
		t.Fatalf("list logs with deleted failed: %v", err)
	}
	if total != 1 || !logs[0].IsDeleted {
		t.Fatalf("expected 1 soft-deleted log, got total=%d", total)
	}

	// 已删除日志重复删除返回未找到
	if err := svc.DeleteLog(ctx, entry.ID, "author-001", false); err != repository.ErrNotFound {
		t.Fatalf("expected ErrNotFound for double delete, got %v", err)
	}
}
