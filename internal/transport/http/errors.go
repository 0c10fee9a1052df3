package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/auth"
	"mailflow/backend/internal/auth/jwt"
	"mailflow/backend/internal/domain"
)

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInternalError  = "服务器内部错误，请稍后重试"
)

type errorMapping struct {
	err    error
	status int
	msg    string
}

// 错误映射表（业务错误 -> HTTP 状态码和中文消息），按顺序匹配
var errorMappings = []errorMapping{
	{domain.ErrForbidden, http.StatusForbidden, "权限不足"},

	{domain.ErrUserNotFound, http.StatusNotFound, "用户不存在"},
	{domain.ErrClientNotFound, http.StatusNotFound, "联系人不存在"},
	{domain.ErrMessageNotFound, http.StatusNotFound, "邮件模板不存在"},
	{domain.ErrMailingNotFound, http.StatusNotFound, "群发不存在"},

	{domain.ErrUserEmailExists, http.StatusConflict, "该邮箱已被注册"},
	{domain.ErrClientEmailExists, http.StatusConflict, "该联系人邮箱已存在"},
	{domain.ErrCannotModifySelf, http.StatusConflict, "不能修改自己的账户"},
	{domain.ErrCannotModifyOwner, http.StatusConflict, "不能修改站点所有者账户"},

	{domain.ErrPasswordTooShort, http.StatusUnprocessableEntity, "密码至少 8 个字符"},
	{domain.ErrPasswordTooLong, http.StatusUnprocessableEntity, "密码最多 72 个字符"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "输入校验失败"},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "邮箱或密码错误"},
	{auth.ErrInvalidPassword, http.StatusUnauthorized, "原密码不正确"},
	{auth.ErrUserInactive, http.StatusForbidden, "账户已被禁用"},
	{jwt.ErrExpiredToken, http.StatusUnauthorized, "登录已过期，请重新登录"},
	{jwt.ErrInvalidToken, http.StatusUnauthorized, "无效的令牌"},
	{jwt.ErrWrongTokenType, http.StatusUnauthorized, "无效的令牌"},
}

// respondError 将服务层错误写成统一响应；未识别的错误记录日志并返回 500
func respondError(c *gin.Context, log *zap.Logger, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			ErrorWithData(c, m.status, m.msg, verr.Fields)
			return
		}
		Error(c, m.status, m.msg)
		return
	}

	log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	Error(c, http.StatusInternalServerError, MsgInternalError)
}
