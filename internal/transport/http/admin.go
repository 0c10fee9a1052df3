package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/middleware"
	"mailflow/backend/internal/service"
)

// AdminHandler 用户管理接口
type AdminHandler struct {
	adminService *service.AdminService
	log          *zap.Logger
}

// NewAdminHandler 创建用户管理处理器
func NewAdminHandler(adminService *service.AdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{adminService: adminService, log: log}
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// ListUsers godoc
// @Summary 获取用户列表
// @Tags Admin
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(20)
// @Param search query string false "按邮箱搜索"
// @Param role query string false "角色过滤（user/manager/owner）"
// @Param isActive query bool false "激活状态过滤"
// @Router /v1/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	var role *domain.UserRole
	if r := c.Query("role"); r != "" {
		roleVal := domain.UserRole(r)
		if !roleVal.Valid() {
			BadRequest(c)
			return
		}
		role = &roleVal
	}

	var isActive *bool
	if a := c.Query("isActive"); a != "" {
		active, err := strconv.ParseBool(a)
		if err != nil {
			BadRequest(c)
			return
		}
		isActive = &active
	}

	result, err := h.adminService.ListUsers(c.Request.Context(), middleware.CurrentUser(c), service.ListUsersInput{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Role:     role,
		IsActive: isActive,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, result)
}

// GetUser 用户详情
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.adminService.GetUser(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, user)
}

// SetUserActive 封禁或解封用户
// @Summary 封禁/解封用户
// @Tags Admin
// @Router /v1/admin/users/{id}/active [patch]
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}
	user, err := h.adminService.SetUserActive(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), *req.IsActive)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, user)
}
