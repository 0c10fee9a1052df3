package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailflow/backend/internal/middleware"
	"mailflow/backend/internal/service"
)

// StatsHandler 统计接口
type StatsHandler struct {
	stats *service.StatsService
	log   *zap.Logger
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(stats *service.StatsService, log *zap.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, log: log}
}

// OwnerStats 当前用户的群发统计
// @Summary 群发统计
// @Tags 统计
// @Router /v1/stats [get]
func (h *StatsHandler) OwnerStats(c *gin.Context) {
	stats, err := h.stats.GetOwnerStats(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, stats)
}

// Home 首页概览
// @Summary 首页概览
// @Tags 统计
// @Router /v1/home [get]
func (h *StatsHandler) Home(c *gin.Context) {
	summary, err := h.stats.GetHomeSummary(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, summary)
}
