package service

import (
	"context"
	"errors"
	"testing"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/testutil"
	"gorm.io/gorm"
)

// fakeBlobStore records removed object paths
type fakeBlobStore struct {
	removed []string
}

func (f *fakeBlobStore) Remove(_ context.Context, path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func setupApprovalTest(t *testing.T) (*gorm.DB, *ApprovalService, *fakeBlobStore) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	notifySvc := NewNotificationService(repos.Notification, repos.User, repos.Project, nil)
	blobs := &fakeBlobStore{}
	svc := NewApprovalService(repos.Approval, repos.HistoryLog, repos.User, notifySvc, blobs)

	testutil.SeedTestUser(t, db, "req-001", "发起人甲", "requester@test.com")
	testutil.SeedTestUser(t, db, "app-001", "审批人乙", "approver@test.com")
	testutil.SeedTestProject(t, db, "proj-appr-001", "审批测试项目", "req-001")

	return db, svc, blobs
}

// TestApprovalLifecycle walks create → respond and verifies exactly one
// request log and one trigger-written response log remain.
func TestApprovalLifecycle(t *testing.T) {
	db, svc, _ := setupApprovalTest(t)
	ctx := context.Background()

	approval, err := svc.CreateApprovalRequest(ctx, CreateApprovalReq{
		ProjectID:  "proj-appr-001",
		ApproverID: "app-001",
		Memo:       "请确认图纸变更",
	}, "req-001")
	if err != nil {
		t.Fatalf("create approval failed: %v", err)
	}
	if approval.Status != entity.ApprovalStatusPending {
		t.Fatalf("expected pending, got %s", approval.Status)
	}
	if approval.HistoryLogID == nil {
		t.Fatal("expected request log linked")
	}

	var reqLogs []entity.HistoryLog
	db.Where("project_id = ? AND log_type = ?", "proj-appr-001", entity.LogTypeApprovalRequest).Find(&reqLogs)
	if len(reqLogs) != 1 {
		t.Fatalf("expected 1 request log, got %d", len(reqLogs))
	}
	if reqLogs[0].AuthorID != "req-001" || reqLogs[0].TargetUserID == nil || *reqLogs[0].TargetUserID != "app-001" {
		t.Fatalf("request log author/target mismatch: %+v", reqLogs[0])
	}

	resolved, err := svc.RespondToApprovalRequest(ctx, approval.ID, "app-001", entity.ApprovalStatusApproved, "同意变更")
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if resolved.Status != entity.ApprovalStatusApproved {
		t.Fatalf("expected approved, got %s", resolved.Status)
	}
	if resolved.RespondedAt == nil {
		t.Fatal("expected responded_at set")
	}

	// 响应日志由数据库触发器写入
	var respLogs []entity.HistoryLog
	db.Where("project_id = ? AND log_type = ?", "proj-appr-001", entity.LogTypeApprovalResponse).Find(&respLogs)
	if len(respLogs) != 1 {
		t.Fatalf("expected 1 response log, got %d", len(respLogs))
	}
	if respLogs[0].AuthorID != "app-001" {
		t.Fatalf("expected response author app-001, got %s", respLogs[0].AuthorID)
	}
	if respLogs[0].ApprovalStatus == nil || *respLogs[0].ApprovalStatus != entity.ApprovalStatusApproved {
		t.Fatalf("expected approval_status approved, got %v", respLogs[0].ApprovalStatus)
	}
	if respLogs[0].Content != "同意变更" {
		t.Fatalf("expected response memo as content, got %q", respLogs[0].Content)
	}
	if resolved.ResponseLogID == nil || *resolved.ResponseLogID != respLogs[0].ID {
		t.Fatalf("expected response_log_id backfilled, got %v", resolved.ResponseLogID)
	}

	// 终态后再次响应必须失败
	_, err = svc.RespondToApprovalRequest(ctx, approval.ID, "app-001", entity.ApprovalStatusRejected, "反悔")
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	// 且不会多写响应日志
	db.Where("project_id = ? AND log_type = ?", "proj-appr-001", entity.LogTypeApprovalResponse).Find(&respLogs)
	if len(respLogs) != 1 {
		t.Fatalf("expected still 1 response log, got %d", len(respLogs))
	}
}

// TestApprovalValidation covers self-approval and wrong-approver rejection.
func TestApprovalValidation(t *testing.T) {
	_, svc, _ := setupApprovalTest(t)
	ctx := context.Background()

	// 自己审批自己
	_, err := svc.CreateApprovalRequest(ctx, CreateApprovalReq{
		ProjectID:  "proj-appr-001",
		ApproverID: "req-001",
		Memo:       "self",
	}, "req-001")
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for self approval, got %v", err)
	}

	// 非指定审批人响应
	approval, err := svc.CreateApprovalRequest(ctx, CreateApprovalReq{
		ProjectID:  "proj-appr-001",
		ApproverID: "app-001",
		Memo:       "请审批",
	}, "req-001")
	if err != nil {
		t.Fatalf("create approval failed: %v", err)
	}
	_, err = svc.RespondToApprovalRequest(ctx, approval.ID, "req-001", entity.ApprovalStatusApproved, "")
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for wrong approver, got %v", err)
	}

	// 非法结果值
	_, err = svc.RespondToApprovalRequest(ctx, approval.ID, "app-001", "maybe", "")
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}
}

// TestDeleteApprovalCascade verifies the asymmetric cleanup: request log and
// attachments removed physically, response log only soft-deleted.
func TestDeleteApprovalCascade(t *testing.T) {
	db, svc, blobs := setupApprovalTest(t)
	ctx := context.Background()

	approval, err := svc.CreateApprovalRequest(ctx, CreateApprovalReq{
		ProjectID:  "proj-appr-001",
		ApproverID: "app-001",
		Memo:       "带附件的审批",
		Attachments: []AttachmentReq{
			{FileName: "drawing.pdf", FilePath: "attachments/2026/09/01/abc.pdf", FileSize: 1024, MimeType: "application/pdf"},
		},
	}, "req-001")
	if err != nil {
		t.Fatalf("create approval failed: %v", err)
	}
	requestLogID := *approval.HistoryLogID

	if _, err := svc.RespondToApprovalRequest(ctx, approval.ID, "app-001", entity.ApprovalStatusRejected, "图纸有误"); err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	if err := svc.DeleteApprovalRequest(ctx, approval.ID, "admin-001"); err != nil {
		t.Fatalf("delete approval failed: %v", err)
	}

	// 审批行物理删除
	var count int64
	db.Model(&entity.ApprovalRequest{}).Where("id = ?", approval.ID).Count(&count)
	if count != 0 {
		t.Fatal("expected approval row removed")
	}

	// 请求日志和附件行物理删除
	db.Model(&entity.HistoryLog{}).Where("id = ?", requestLogID).Count(&count)
	if count != 0 {
		t.Fatal("expected request log removed")
	}
	db.Model(&entity.LogAttachment{}).Where("log_id = ?", requestLogID).Count(&count)
	if count != 0 {
		t.Fatal("expected attachment rows removed")
	}

	// 对象存储文件已清理
	if len(blobs.removed) != 1 || blobs.removed[0] != "attachments/2026/09/01/abc.pdf" {
		t.Fatalf("expected blob removed, got %v", blobs.removed)
	}

	// 响应日志保留但标记删除
	var respLog entity.HistoryLog
	if err := db.Where("project_id = ? AND log_type = ?", "proj-appr-001", entity.LogTypeApprovalResponse).First(&respLog).Error; err != nil {
		t.Fatalf("expected response log kept: %v", err)
	}
	if !respLog.IsDeleted {
		t.Fatal("expected response log soft-deleted")
	}
	if respLog.DeletedBy == nil || *respLog.DeletedBy != "admin-001" {
		t.Fatalf("expected deleted_by admin-001, got %v", respLog.DeletedBy)
	}
}

// TestCountMyPending verifies the approver inbox counter.
func TestCountMyPending(t *testing.T) {
	_, svc, _ := setupApprovalTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateApprovalRequest(ctx, CreateApprovalReq{
			ProjectID:  "proj-appr-001",
			ApproverID: "app-001",
			Memo:       "批量请求",
		}, "req-001"); err != nil {
			t.Fatalf("create approval %d failed: %v", i, err)
		}
	}

	count, err := svc.CountMyPending(ctx, "app-001")
	if err != nil {
		t.Fatalf("count pending failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 pending, got %d", count)
	}
}
