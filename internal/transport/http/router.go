package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/auth"
	"mailflow/backend/internal/config"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/health"
	"mailflow/backend/internal/middleware"
	"mailflow/backend/internal/monitoring"
	"mailflow/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	AuthService *auth.Service
	Clients     *service.ClientService
	Messages    *service.MessageService
	Mailings    *service.MailingService
	Sender      *service.SendService
	Stats       *service.StatsService
	Admin       *service.AdminService
	Metrics     *monitoring.Metrics
	Health      *health.HealthChecker // 为 nil 时只提供简单的 /health
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	mon := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(mon.PanicRecovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	router.Use(mon.HTTPMetrics())
	router.Use(gincors.New(corsConfig(deps.Config)))

	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
	}

	authHandler := NewAuthHandler(deps.AuthService, log)
	clientHandler := NewClientHandler(deps.Clients, log)
	messageHandler := NewMessageHandler(deps.Messages, log)
	mailingHandler := NewMailingHandler(deps.Mailings, deps.Sender, log)
	statsHandler := NewStatsHandler(deps.Stats, log)
	adminHandler := NewAdminHandler(deps.Admin, log)

	jwtAuth := middleware.NewJWTAuth(deps.AuthService, log)

	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.POST("/password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		}

		protected := v1.Group("")
		protected.Use(jwtAuth.RequireAuth())

		// ========== Client Routes ==========
		clientRoutes := protected.Group("/clients")
		{
			clientRoutes.POST("", clientHandler.Create)
			clientRoutes.GET("", clientHandler.List)
			clientRoutes.GET("/:id", clientHandler.Get)
			clientRoutes.PUT("/:id", clientHandler.Update)
			clientRoutes.DELETE("/:id", clientHandler.Delete)
		}

		// ========== Message Routes ==========
		messageRoutes := protected.Group("/messages")
		{
			messageRoutes.POST("", messageHandler.Create)
			messageRoutes.GET("", messageHandler.List)
			messageRoutes.GET("/:id", messageHandler.Get)
			messageRoutes.PUT("/:id", messageHandler.Update)
			messageRoutes.DELETE("/:id", messageHandler.Delete)
		}

		// ========== Mailing Routes ==========
		mailingRoutes := protected.Group("/mailings")
		{
			mailingRoutes.POST("", mailingHandler.Create)
			mailingRoutes.GET("", mailingHandler.List)
			mailingRoutes.GET("/:id", mailingHandler.Get)
			mailingRoutes.PUT("/:id", mailingHandler.Update)
			mailingRoutes.DELETE("/:id", mailingHandler.Delete)
			mailingRoutes.POST("/:id/send", mailingHandler.Send)
			mailingRoutes.POST("/:id/disable", mailingHandler.Disable)
			mailingRoutes.GET("/:id/attempts", mailingHandler.Attempts)
		}

		// ========== Stats Routes ==========
		protected.GET("/stats", statsHandler.OwnerStats)
		protected.GET("/home", statsHandler.Home)

		// ========== Admin Routes ==========
		adminRoutes := protected.Group("/admin")
		adminRoutes.Use(middleware.RequireCapability(domain.CapManageUsers))
		{
			adminRoutes.GET("/users", adminHandler.ListUsers)
			adminRoutes.GET("/users/:id", adminHandler.GetUser)
			adminRoutes.PATCH("/users/:id/active", adminHandler.SetUserActive)
		}
	}

	return router
}

func corsConfig(cfg *config.Config) gincors.Config {
	origins := []string{"*"}
	if cfg != nil && len(cfg.CORS.AllowedOrigins) > 0 {
		origins = cfg.CORS.AllowedOrigins
	}

	corsCfg := gincors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 允许所有来源时不能携带凭证
	for _, origin := range corsCfg.AllowOrigins {
		if origin == "*" {
			corsCfg.AllowCredentials = false
			break
		}
	}
	return corsCfg
}
