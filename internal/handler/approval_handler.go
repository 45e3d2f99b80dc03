package handler

import (
	"errors"

	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ApprovalHandler 审批处理器
type ApprovalHandler struct {
	svc *service.ApprovalService
}

func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// ListApprovals 审批列表
// GET /api/v1/approvals?project_id=xxx&status=xxx&approver_id=xxx&requester_id=xxx
func (h *ApprovalHandler) ListApprovals(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"project_id":   c.Query("project_id"),
		"status":       c.Query("status"),
		"approver_id":  c.Query("approver_id"),
		"requester_id": c.Query("requester_id"),
	}

	items, total, err := h.svc.ListApprovals(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取审批列表失败: "+err.Error())
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// GetApproval 审批详情
// GET /api/v1/approvals/:id
func (h *ApprovalHandler) GetApproval(c *gin.Context) {
	id := c.Param("id")
	approval, err := h.svc.GetApproval(c.Request.Context(), id)
	if err != nil {
		NotFound(c, "审批请求不存在")
		return
	}
	Success(c, approval)
}

// CreateApproval 发起审批请求
// POST /api/v1/approvals
func (h *ApprovalHandler) CreateApproval(c *gin.Context) {
	var req service.CreateApprovalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	approval, err := h.svc.CreateApprovalRequest(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "用户或项目不存在")
			return
		}
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "发起审批失败: "+err.Error())
		return
	}

	Created(c, approval)
}

// RespondReq 审批响应请求体
type RespondReq struct {
	Status       string `json:"status" binding:"required"`
	ResponseMemo string `json:"response_memo"`
}

// RespondApproval 批准或驳回
// POST /api/v1/approvals/:id/respond
func (h *ApprovalHandler) RespondApproval(c *gin.Context) {
	id := c.Param("id")
	var req RespondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	approval, err := h.svc.RespondToApprovalRequest(c.Request.Context(), id, GetUserID(c), req.Status, req.ResponseMemo)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "审批请求不存在")
			return
		}
		if errors.Is(err, service.ErrAlreadyResolved) {
			Conflict(c, "审批请求已被处理")
			return
		}
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "处理审批失败: "+err.Error())
		return
	}

	Success(c, approval)
}

// DeleteApproval 管理员删除审批请求（连带清理请求日志和附件）
// DELETE /api/v1/approvals/:id
func (h *ApprovalHandler) DeleteApproval(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteApprovalRequest(c.Request.Context(), id, GetUserID(c)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "审批请求不存在")
			return
		}
		InternalError(c, "删除审批失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// CountMyPending 我的待处理审批数
// GET /api/v1/approvals/pending/count
func (h *ApprovalHandler) CountMyPending(c *gin.Context) {
	count, err := h.svc.CountMyPending(c.Request.Context(), GetUserID(c))
	if err != nil {
		InternalError(c, "统计待处理审批失败: "+err.Error())
		return
	}
	Success(c, gin.H{"count": count})
}
