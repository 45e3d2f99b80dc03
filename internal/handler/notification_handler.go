package handler

import (
	"errors"
	"strconv"

	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// ListNotifications 我的通知列表
// GET /api/v1/notifications?unread_only=true
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	page, pageSize := GetPagination(c)
	unreadOnly, _ := strconv.ParseBool(c.Query("unread_only"))

	items, total, err := h.svc.ListNotifications(c.Request.Context(), GetUserID(c), page, pageSize, unreadOnly)
	if err != nil {
		InternalError(c, "获取通知列表失败: "+err.Error())
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

// MarkRead 单条已读
// POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.MarkRead(c.Request.Context(), id, GetUserID(c)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "通知不存在")
			return
		}
		InternalError(c, "标记已读失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// MarkAllRead 全部已读
// POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(c.Request.Context(), GetUserID(c)); err != nil {
		InternalError(c, "标记全部已读失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// CountUnread 未读数
// GET /api/v1/notifications/unread/count
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	count, err := h.svc.CountUnread(c.Request.Context(), GetUserID(c))
	if err != nil {
		InternalError(c, "统计未读通知失败: "+err.Error())
		return
	}
	Success(c, gin.H{"count": count})
}
