package handler

import (
	"errors"

	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	svc *service.ProjectService
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// ListProjects 项目列表
// GET /api/v1/projects?site=xxx&current_stage=xxx&is_urgent=true&search=xxx
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"site":          c.Query("site"),
		"current_stage": c.Query("current_stage"),
		"is_urgent":     c.Query("is_urgent"),
		"search":        c.Query("search"),
	}

	items, total, err := h.svc.ListProjects(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取项目列表失败: "+err.Error())
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

// GetProject 项目详情（含工序和进度）
// GET /api/v1/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id := c.Param("id")
	project, progress, err := h.svc.GetProject(c.Request.Context(), id)
	if err != nil {
		NotFound(c, "项目不存在")
		return
	}
	Success(c, gin.H{
		"project":  project,
		"progress": progress,
	})
}

// CreateProject 创建项目
// POST /api/v1/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req service.CreateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	userID := GetUserID(c)
	project, err := h.svc.CreateProject(c.Request.Context(), userID, &req)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "创建项目失败: "+err.Error())
		return
	}

	Created(c, project)
}

// UpdateProject 更新项目
// PUT /api/v1/projects/:id
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id := c.Param("id")
	var req service.UpdateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	project, err := h.svc.UpdateProject(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "项目不存在")
			return
		}
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "更新项目失败: "+err.Error())
		return
	}

	Success(c, project)
}

// DeleteProject 删除项目
// DELETE /api/v1/projects/:id
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteProject(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "项目不存在")
			return
		}
		InternalError(c, "删除项目失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// GetDashboard 仪表盘统计
// GET /api/v1/dashboard/summary
func (h *ProjectHandler) GetDashboard(c *gin.Context) {
	summary, err := h.svc.GetDashboardSummary(c.Request.Context())
	if err != nil {
		InternalError(c, "获取仪表盘统计失败: "+err.Error())
		return
	}
	Success(c, summary)
}
