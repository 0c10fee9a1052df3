package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/auth"
	"mailflow/backend/internal/auth/jwt"
	"mailflow/backend/internal/domain"
)

// 上下文键
const (
	ContextUser   = "user"
	ContextUserID = "userID"
	ContextRole   = "role"
)

// Authenticator 校验访问令牌并返回当前用户
type Authenticator interface {
	Authenticate(accessToken string) (*domain.User, error)
}

// JWTAuth JWT 认证中间件
type JWTAuth struct {
	authn Authenticator
	log   *zap.Logger
}

// NewJWTAuth 创建 JWT 认证中间件
func NewJWTAuth(authn Authenticator, log *zap.Logger) *JWTAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &JWTAuth{authn: authn, log: log}
}

// RequireAuth 要求有效的访问令牌，并把当前用户放入上下文
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "需要登录认证")
			return
		}

		user, err := ja.authn.Authenticate(token)
		if err != nil {
			ja.log.Warn("authentication failed",
				zap.Error(err),
				zap.String("ip", c.ClientIP()),
			)
			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				abort(c, http.StatusUnauthorized, "登录已过期，请重新登录")
			case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrWrongTokenType):
				abort(c, http.StatusUnauthorized, "无效的访问令牌")
			case errors.Is(err, auth.ErrUserInactive):
				abort(c, http.StatusForbidden, "账户已被禁用")
			default:
				abort(c, http.StatusInternalServerError, "服务器内部错误，请稍后重试")
			}
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, string(user.Role))
		c.Next()
	}
}

// RequireCapability 要求当前用户拥有指定能力；必须放在 RequireAuth 之后
func RequireCapability(capability domain.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).Can(capability) {
			abort(c, http.StatusForbidden, "权限不足")
			return
		}
		c.Next()
	}
}

// CurrentUser 返回 RequireAuth 放入上下文的用户，未认证时为 nil
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

// extractToken 从 Authorization 头或 cookie 中提取令牌
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	return ""
}

// abort 以统一响应结构终止请求
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code": status,
		"msg":  msg,
	})
}
