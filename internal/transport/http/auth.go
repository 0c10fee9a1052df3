package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/auth"
	"mailflow/backend/internal/middleware"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service
	log         *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// Register 用户注册
// @Summary 用户注册
// @Tags 认证
// @Router /v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}

	session, err := h.authService.Register(req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Created(c, session)
}

// Login 邮箱密码登录
// @Summary 用户登录
// @Tags 认证
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}

	session, err := h.authService.Login(req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.log.Info("user logged in", zap.String("user_id", session.User.ID))
	Success(c, session)
}

// Refresh 刷新令牌
// @Summary 刷新访问令牌
// @Tags 认证
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}

	session, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, session)
}

// Me 当前用户信息
// @Summary 获取当前用户
// @Tags 认证
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	Success(c, gin.H{
		"user":         user,
		"capabilities": user.Capabilities().List(),
	})
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 认证
// @Router /v1/auth/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.authService.ChangePassword(user.ID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, nil)
}
