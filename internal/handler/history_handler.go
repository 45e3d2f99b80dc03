package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/8around/outsourcing-design-park-sub000/internal/storage"
	"github.com/gin-gonic/gin"
)

// HistoryHandler 履历日志处理器
type HistoryHandler struct {
	svc   *service.HistoryService
	store *storage.Store
}

func NewHistoryHandler(svc *service.HistoryService, store *storage.Store) *HistoryHandler {
	return &HistoryHandler{svc: svc, store: store}
}

// ListLogs 项目履历日志
// GET /api/v1/projects/:id/logs?include_deleted=true
func (h *HistoryHandler) ListLogs(c *gin.Context) {
	projectID := c.Param("id")
	page, pageSize := GetPagination(c)

	includeDeleted := false
	if IsAdmin(c) {
		includeDeleted, _ = strconv.ParseBool(c.Query("include_deleted"))
	}

	items, total, err := h.svc.ListProjectLogs(c.Request.Context(), projectID, page, pageSize, includeDeleted)
	if err != nil {
		InternalError(c, "获取履历日志失败: "+err.Error())
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

// CreateLog 手动添加履历日志
// POST /api/v1/logs
func (h *HistoryHandler) CreateLog(c *gin.Context) {
	var req service.CreateLogReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	logEntry, err := h.svc.CreateManualLog(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "用户或项目不存在")
			return
		}
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "创建日志失败: "+err.Error())
		return
	}

	Created(c, logEntry)
}

// DeleteLog 软删除日志（作者或管理员）
// DELETE /api/v1/logs/:id
func (h *HistoryHandler) DeleteLog(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteLog(c.Request.Context(), id, GetUserID(c), IsAdmin(c)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "日志不存在")
			return
		}
		if service.IsValidationError(err) {
			Forbidden(c, err.Error())
			return
		}
		InternalError(c, "删除日志失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// UploadAttachment 上传附件文件，返回存储路径供创建日志时引用
// POST /api/v1/uploads
func (h *HistoryHandler) UploadAttachment(c *gin.Context) {
	if h.store == nil {
		InternalError(c, "附件存储未配置")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少文件: "+err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取文件失败: "+err.Error())
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	path, err := h.store.Upload(c.Request.Context(), fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		InternalError(c, "上传文件失败: "+err.Error())
		return
	}

	Created(c, gin.H{
		"file_name": fileHeader.Filename,
		"file_path": path,
		"file_size": fileHeader.Size,
		"mime_type": contentType,
	})
}

// DownloadAttachment 生成限时下载链接
// GET /api/v1/uploads/url?path=xxx&name=xxx
func (h *HistoryHandler) DownloadAttachment(c *gin.Context) {
	if h.store == nil {
		InternalError(c, "附件存储未配置")
		return
	}

	path := c.Query("path")
	if path == "" {
		BadRequest(c, "缺少path参数")
		return
	}

	url, err := h.store.PresignedURL(c.Request.Context(), path, c.Query("name"), 15*time.Minute)
	if err != nil {
		InternalError(c, "生成下载链接失败: "+err.Error())
		return
	}

	Success(c, gin.H{"url": url})
}
