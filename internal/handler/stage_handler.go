package handler

import (
	"errors"

	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// StageHandler 工序处理器
type StageHandler struct {
	svc *service.StageService
}

func NewStageHandler(svc *service.StageService) *StageHandler {
	return &StageHandler{svc: svc}
}

// ListStages 项目的14道工序
// GET /api/v1/projects/:id/stages
func (h *StageHandler) ListStages(c *gin.Context) {
	projectID := c.Param("id")
	stages, err := h.svc.GetStages(c.Request.Context(), projectID)
	if err != nil {
		InternalError(c, "获取工序失败: "+err.Error())
		return
	}
	Success(c, stages)
}

// UpdateStage 更新单道工序
// PUT /api/v1/projects/:id/stages/:stage
func (h *StageHandler) UpdateStage(c *gin.Context) {
	projectID := c.Param("id")
	stageName := c.Param("stage")

	var patch service.UpdateStagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	stage, err := h.svc.UpdateStage(c.Request.Context(), projectID, stageName, patch, GetUserID(c), GetUserName(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "工序不存在")
			return
		}
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "更新工序失败: "+err.Error())
		return
	}

	Success(c, stage)
}

// MoveToNextStage 推进到下一道工序
// POST /api/v1/projects/:id/stages/advance
func (h *StageHandler) MoveToNextStage(c *gin.Context) {
	projectID := c.Param("id")

	next, err := h.svc.MoveToNextStage(c.Request.Context(), projectID, GetUserID(c), GetUserName(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "项目不存在")
			return
		}
		InternalError(c, "推进工序失败: "+err.Error())
		return
	}

	if next == nil {
		// 无进行中工序，或最后一道刚刚完成
		Success(c, gin.H{"advanced": false})
		return
	}

	Success(c, gin.H{
		"advanced": true,
		"started":  next,
	})
}
