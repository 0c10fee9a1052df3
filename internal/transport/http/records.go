package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/middleware"
	"mailflow/backend/internal/service"
)

// ClientHandler 联系人接口
type ClientHandler struct {
	clients *service.ClientService
	log     *zap.Logger
}

// NewClientHandler 创建联系人处理器
func NewClientHandler(clients *service.ClientService, log *zap.Logger) *ClientHandler {
	return &ClientHandler{clients: clients, log: log}
}

// Create 创建联系人
// @Summary 创建联系人
// @Tags 联系人
// @Router /v1/clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req domain.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}
	client, err := h.clients.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Created(c, client)
}

// List 联系人列表
// @Summary 联系人列表
// @Tags 联系人
// @Router /v1/clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clients.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, clients)
}

// Get 联系人详情
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clients.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, client)
}

// Update 修改联系人
func (h *ClientHandler) Update(c *gin.Context) {
	var req domain.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}
	client, err := h.clients.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, client)
}

// Delete 删除联系人
func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.clients.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	Deleted(c)
}

// MessageHandler 邮件模板接口
type MessageHandler struct {
	messages *service.MessageService
	log      *zap.Logger
}

// NewMessageHandler 创建邮件模板处理器
func NewMessageHandler(messages *service.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log}
}

// Create 创建邮件模板
// @Summary 创建邮件模板
// @Tags 邮件模板
// @Router /v1/messages [post]
func (h *MessageHandler) Create(c *gin.Context) {
	var req domain.MessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}
	message, err := h.messages.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Created(c, message)
}

// List 邮件模板列表
func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.messages.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, messages)
}

// Get 邮件模板详情
func (h *MessageHandler) Get(c *gin.Context) {
	message, err := h.messages.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, message)
}

// Update 修改邮件模板
func (h *MessageHandler) Update(c *gin.Context) {
	var req domain.MessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}
	message, err := h.messages.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, message)
}

// Delete 删除邮件模板（级联删除使用它的群发）
func (h *MessageHandler) Delete(c *gin.Context) {
	if err := h.messages.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	Deleted(c)
}
