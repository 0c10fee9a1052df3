package httptransport

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/middleware"
	"mailflow/backend/internal/service"
)

// MailingHandler 群发接口
type MailingHandler struct {
	mailings *service.MailingService
	sender   *service.SendService
	log      *zap.Logger
}

// NewMailingHandler 创建群发处理器
func NewMailingHandler(mailings *service.MailingService, sender *service.SendService, log *zap.Logger) *MailingHandler {
	return &MailingHandler{mailings: mailings, sender: sender, log: log}
}

// 被拒绝的发送结果对应的状态码和提示
var sendOutcomeResponses = map[domain.SendOutcome]struct {
	status int
	msg    string
}{
	domain.OutcomeCompleted:       {http.StatusOK, "发送完成"},
	domain.OutcomeForbidden:       {http.StatusForbidden, "无权发送该群发"},
	domain.OutcomeNotFound:        {http.StatusNotFound, "群发不存在"},
	domain.OutcomeAlreadyFinished: {http.StatusConflict, "群发已结束"},
	domain.OutcomeDisabled:        {http.StatusConflict, "群发已停用"},
	domain.OutcomeNotStarted:      {http.StatusConflict, "群发尚未开始"},
	domain.OutcomeInProgress:      {http.StatusConflict, "群发正在发送中"},
}

// Create 创建群发
// @Summary 创建群发
// @Tags 群发
// @Router /v1/mailings [post]
func (h *MailingHandler) Create(c *gin.Context) {
	var req domain.MailingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}
	mailing, err := h.mailings.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Created(c, mailing)
}

// List 群发列表
func (h *MailingHandler) List(c *gin.Context) {
	mailings, err := h.mailings.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, mailings)
}

// Get 群发详情
func (h *MailingHandler) Get(c *gin.Context) {
	mailing, err := h.mailings.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, mailing)
}

// Update 修改群发
func (h *MailingHandler) Update(c *gin.Context) {
	var req domain.MailingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c)
		return
	}
	mailing, err := h.mailings.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, mailing)
}

// Delete 删除群发
func (h *MailingHandler) Delete(c *gin.Context) {
	if err := h.mailings.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	Deleted(c)
}

// Send 执行一次发送轮次
// @Summary 发送群发
// @Description 逐个收件人投递；单个收件人失败不影响整体结果
// @Tags 群发
// @Router /v1/mailings/{id}/send [post]
func (h *MailingHandler) Send(c *gin.Context) {
	// 客户端断开不应留下只发送了一半的轮次
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := h.sender.Execute(ctx, c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	resp, ok := sendOutcomeResponses[result.Outcome]
	if !ok {
		resp.status, resp.msg = http.StatusInternalServerError, MsgInternalError
	}
	ErrorWithData(c, resp.status, resp.msg, result)
}

// Disable 停用群发
// @Summary 停用群发
// @Tags 群发
// @Router /v1/mailings/{id}/disable [post]
func (h *MailingHandler) Disable(c *gin.Context) {
	mailing, err := h.mailings.Disable(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, mailing)
}

// Attempts 群发的投递记录
func (h *MailingHandler) Attempts(c *gin.Context) {
	attempts, err := h.mailings.Attempts(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, attempts)
}
