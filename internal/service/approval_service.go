package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/sse"
	"github.com/google/uuid"
)

// BlobRemover 附件对象删除接口（MinIO实现）
type BlobRemover interface {
	Remove(ctx context.Context, path string) error
}

// ApprovalService 审批工作流服务。
// 状态机：pending → approved | rejected，终态不可重开。
type ApprovalService struct {
	approvalRepo *repository.ApprovalRepository
	logRepo      *repository.HistoryLogRepository
	userRepo     *repository.UserRepository
	notifySvc    *NotificationService
	blobStore    BlobRemover
}

func NewApprovalService(
	approvalRepo *repository.ApprovalRepository,
	logRepo *repository.HistoryLogRepository,
	userRepo *repository.UserRepository,
	notifySvc *NotificationService,
	blobStore BlobRemover,
) *ApprovalService {
	return &ApprovalService{
		approvalRepo: approvalRepo,
		logRepo:      logRepo,
		userRepo:     userRepo,
		notifySvc:    notifySvc,
		blobStore:    blobStore,
	}
}

// CreateApprovalReq 创建审批请求参数
type CreateApprovalReq struct {
	ProjectID   string          `json:"project_id" binding:"required"`
	ApproverID  string          `json:"approver_id" binding:"required"`
	Memo        string          `json:"memo" binding:"required"`
	Category    string          `json:"category"`
	Attachments []AttachmentReq `json:"attachments"`
}

// AttachmentReq 附件引用（已上传到对象存储）
type AttachmentReq struct {
	FileName string `json:"file_name" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// CreateApprovalRequest 创建审批请求。
// 先写审批台账行，再尽力追加approval_request历史日志；两次写入不在同一事务，
// 日志失败只记录服务端日志，绝不回滚审批行。
func (s *ApprovalService) CreateApprovalRequest(ctx context.Context, req CreateApprovalReq, requesterID string) (*entity.ApprovalRequest, error) {
	if req.ApproverID == requesterID {
		return nil, NewValidationError("approver_id", "不能指定自己为审批人")
	}

	requester, err := s.userRepo.FindByID(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("查找发起人失败: %w", err)
	}
	approver, err := s.userRepo.FindByID(ctx, req.ApproverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewValidationError("approver_id", "审批人不存在")
		}
		return nil, err
	}

	now := time.Now()
	approval := &entity.ApprovalRequest{
		ID:            uuid.New().String()[:32],
		ProjectID:     req.ProjectID,
		RequesterID:   requester.ID,
		RequesterName: requester.Name,
		ApproverID:    approver.ID,
		ApproverName:  approver.Name,
		Memo:          req.Memo,
		Status:        entity.ApprovalStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.approvalRepo.Create(ctx, approval); err != nil {
		return nil, fmt.Errorf("创建审批请求失败: %w", err)
	}

	// 追加审批请求日志（尽力而为的旁路写入）
	category := req.Category
	if category == "" {
		category = entity.LogCategoryApproval
	}
	logEntry := &entity.HistoryLog{
		ID:             uuid.New().String()[:32],
		ProjectID:      req.ProjectID,
		AuthorID:       requester.ID,
		AuthorName:     requester.Name,
		TargetUserID:   &approver.ID,
		TargetUserName: approver.Name,
		Category:       category,
		Content:        req.Memo,
		LogType:        entity.LogTypeApprovalRequest,
		CreatedAt:      now,
	}
	for _, a := range req.Attachments {
		logEntry.Attachments = append(logEntry.Attachments, entity.LogAttachment{
			ID:        uuid.New().String()[:32],
			LogID:     logEntry.ID,
			FileName:  a.FileName,
			FilePath:  a.FilePath,
			FileSize:  a.FileSize,
			MimeType:  a.MimeType,
			CreatedAt: now,
		})
	}
	if err := s.logRepo.Create(ctx, logEntry); err != nil {
		log.Printf("[ApprovalService] 写审批请求日志失败 (approval=%s): %v", approval.ID, err)
	} else {
		approval.HistoryLogID = &logEntry.ID
		if err := s.approvalRepo.SetHistoryLogID(ctx, approval.ID, logEntry.ID); err != nil {
			log.Printf("[ApprovalService] 关联审批日志失败 (approval=%s): %v", approval.ID, err)
		}
	}

	// 通知审批人（站内+邮件，失败不影响主流程）
	go s.notifySvc.NotifyApprovalCreated(context.Background(), approval)
	go sse.PublishApprovalUpdate(approval.ProjectID, approval.ID, "approval_created")

	return approval, nil
}

// RespondToApprovalRequest 审批响应：pending → approved/rejected。
// 写入前以status=pending为条件做比较并交换，竞争失败返回ErrAlreadyResolved。
// approval_response历史日志由数据库触发器写入，这里绝不重复落日志。
func (s *ApprovalService) RespondToApprovalRequest(ctx context.Context, requestID, approverID, status, responseMemo string) (*entity.ApprovalRequest, error) {
	if status != entity.ApprovalStatusApproved && status != entity.ApprovalStatusRejected {
		return nil, NewValidationError("status", "审批结果只能是approved或rejected")
	}

	approval, err := s.approvalRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if approval.ApproverID != approverID {
		return nil, NewValidationError("approver_id", "只有指定审批人可以处理该请求")
	}
	if approval.IsResolved() {
		return nil, ErrAlreadyResolved
	}

	ok, err := s.approvalRepo.Resolve(ctx, requestID, status, responseMemo)
	if err != nil {
		return nil, fmt.Errorf("写入审批结果失败: %w", err)
	}
	if !ok {
		// 读取和写入之间被并发响应抢先
		return nil, ErrAlreadyResolved
	}

	approval, err = s.approvalRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// 回填触发器刚写入的响应日志ID，删除级联依赖这个显式引用
	if respLog, err := s.logRepo.FindResponseLog(ctx, approval.ProjectID, approval.ApproverID, approval.RequesterID, approval.CreatedAt); err != nil {
		log.Printf("[ApprovalService] 查找审批响应日志失败 (approval=%s): %v", requestID, err)
	} else {
		approval.ResponseLogID = &respLog.ID
		if err := s.approvalRepo.SetResponseLogID(ctx, approval.ID, respLog.ID); err != nil {
			log.Printf("[ApprovalService] 关联审批响应日志失败 (approval=%s): %v", approval.ID, err)
		}
	}

	// 通知发起人审批结果
	go s.notifySvc.NotifyApprovalResolved(context.Background(), approval)
	go sse.PublishApprovalUpdate(approval.ProjectID, approval.ID, "approval_"+status)

	return approval, nil
}

// DeleteApprovalRequest 管理员删除审批请求。
// 请求行和其发起日志（含附件和对象存储文件）物理删除；
// 已处理请求的响应日志只做软删除，保留审批决定的审计痕迹。
func (s *ApprovalService) DeleteApprovalRequest(ctx context.Context, requestID, adminID string) error {
	approval, err := s.approvalRepo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}

	if err := s.approvalRepo.HardDelete(ctx, requestID); err != nil {
		return fmt.Errorf("删除审批请求失败: %w", err)
	}

	// 级联：发起日志物理删除，附件对象一并清理
	if approval.HistoryLogID != nil {
		if logEntry, err := s.logRepo.FindByID(ctx, *approval.HistoryLogID); err == nil {
			for _, att := range logEntry.Attachments {
				if s.blobStore == nil {
					continue
				}
				if err := s.blobStore.Remove(ctx, att.FilePath); err != nil {
					log.Printf("[ApprovalService] 删除附件对象失败 (path=%s): %v", att.FilePath, err)
				}
			}
			if err := s.logRepo.HardDelete(ctx, logEntry.ID); err != nil {
				log.Printf("[ApprovalService] 删除审批请求日志失败 (log=%s): %v", logEntry.ID, err)
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("[ApprovalService] 查找审批请求日志失败 (log=%s): %v", *approval.HistoryLogID, err)
		}
	}

	// 已终态请求的响应日志软删除，保留审批决定的审计痕迹。
	// 优先走response_log_id显式引用；历史数据缺引用时退回弱匹配。
	if approval.IsResolved() {
		respLogID := ""
		if approval.ResponseLogID != nil {
			respLogID = *approval.ResponseLogID
		} else {
			respLog, err := s.logRepo.FindResponseLog(ctx, approval.ProjectID, approval.ApproverID, approval.RequesterID, approval.CreatedAt)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					log.Printf("[ApprovalService] 查找审批响应日志失败 (approval=%s): %v", requestID, err)
				}
			} else {
				respLogID = respLog.ID
			}
		}
		if respLogID != "" {
			if err := s.logRepo.SoftDelete(ctx, respLogID, adminID); err != nil {
				log.Printf("[ApprovalService] 软删除审批响应日志失败 (log=%s): %v", respLogID, err)
			}
		}
	}

	return nil
}

// GetApproval 审批详情
func (s *ApprovalService) GetApproval(ctx context.Context, requestID string) (*entity.ApprovalRequest, error) {
	return s.approvalRepo.FindByID(ctx, requestID)
}

// ListApprovals 审批列表（可按项目/状态/审批人/发起人筛选）
func (s *ApprovalService) ListApprovals(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ApprovalRequest, int64, error) {
	return s.approvalRepo.FindAll(ctx, page, pageSize, filters)
}

// CountMyPending 我的待审批数
func (s *ApprovalService) CountMyPending(ctx context.Context, approverID string) (int64, error) {
	return s.approvalRepo.CountPendingByApprover(ctx, approverID)
}
