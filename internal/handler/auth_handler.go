package handler

import (
	"errors"

	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Signup 注册
// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.svc.Signup(c.Request.Context(), &req)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "注册失败: "+err.Error())
		return
	}

	Created(c, user)
}

// LoginReq 登录请求体
type LoginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if service.IsValidationError(err) {
			Unauthorized(c, err.Error())
			return
		}
		InternalError(c, "登录失败: "+err.Error())
		return
	}

	Success(c, gin.H{
		"user":  user,
		"token": pair,
	})
}

// RefreshReq 刷新Token请求体
type RefreshReq struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh 刷新Token
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		Unauthorized(c, "刷新Token失败: "+err.Error())
		return
	}

	Success(c, pair)
}

// Logout 登出
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshReq
	_ = c.ShouldBindJSON(&req)
	_ = h.svc.Logout(c.Request.Context(), req.RefreshToken)
	Success(c, nil)
}

// Me 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.GetCurrentUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		NotFound(c, "用户不存在")
		return
	}
	Success(c, user)
}

// ListPendingUsers 待审批用户（管理员）
// GET /api/v1/users/pending
func (h *AuthHandler) ListPendingUsers(c *gin.Context) {
	page, pageSize := GetPagination(c)
	users, total, err := h.svc.ListPendingUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		InternalError(c, "获取待审批用户失败: "+err.Error())
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	Success(c, ListResponse{
		Items: users,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// ApproveUser 批准注册（管理员）
// POST /api/v1/users/:id/approve
func (h *AuthHandler) ApproveUser(c *gin.Context) {
	id := c.Param("id")
	user, err := h.svc.ApproveUser(c.Request.Context(), id, GetUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "用户不存在")
			return
		}
		InternalError(c, "批准用户失败: "+err.Error())
		return
	}
	Success(c, user)
}
