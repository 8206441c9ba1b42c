// Package http 风险上下文的 HTTP 接入层
package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/aetheris/internal/risk/application"
	"github.com/wyfcoding/aetheris/internal/risk/domain"
	"github.com/wyfcoding/aetheris/pkg/cache"
	"github.com/wyfcoding/aetheris/pkg/logger"
	"github.com/wyfcoding/aetheris/pkg/middleware"
	"github.com/wyfcoding/aetheris/pkg/response"
)

// 合并风险视图的缓存时长。风险数据秒级时效即可
const aggregatedCacheTTL = 10 * time.Second

// RiskHandler 负责处理与风险相关的 HTTP 请求
type RiskHandler struct {
	service *application.RiskApplicationService
	cache   *cache.RedisCache
}

// NewRiskHandler 创建 HTTP 处理器。cache 可为 nil，此时不走缓存
func NewRiskHandler(service *application.RiskApplicationService, cache *cache.RedisCache) *RiskHandler {
	return &RiskHandler{service: service, cache: cache}
}

// RegisterRoutes 注册路由
func (h *RiskHandler) RegisterRoutes(router *gin.RouterGroup) {
	risk := router.Group("/risk")
	{
		risk.GET("/aggregated", h.AggregateRisk)
		risk.PUT("/accounts/:id/state", h.UpdateRiskState)
		risk.POST("/snapshots", h.RecordSnapshots)
	}
}

// AggregateRisk 合并当前用户若干账户的风险视图
func (h *RiskHandler) AggregateRisk(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "authentication required", "")
		return
	}

	raw := c.Query("account_ids")
	if raw == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "account_ids is required", "")
		return
	}
	accountIDs := splitAccountIDs(raw)

	cacheKey := "risk:aggregated:" + userID + ":" + strings.Join(accountIDs, ",")
	if h.cache != nil {
		var cached application.ConsolidatedRisk
		if hit, err := h.cache.GetJSON(c.Request.Context(), cacheKey, &cached); err == nil && hit {
			response.Success(c, cached)
			return
		}
	}

	result, err := h.service.AggregateAccountRisk(c.Request.Context(), application.AggregateRiskCommand{
		UserID:     userID,
		AccountIDs: accountIDs,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(c.Request.Context(), cacheKey, result, aggregatedCacheTTL); err != nil {
			logger.Warn(c.Request.Context(), "failed to cache aggregated risk", "error", err)
		}
	}

	response.Success(c, result)
}

// UpdateRiskState 更新单个账户的风险状态
func (h *RiskHandler) UpdateRiskState(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "authentication required", "")
		return
	}

	var cmd application.UpdateRiskStateCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	cmd.UserID = userID
	cmd.AccountID = c.Param("id")

	summary, err := h.service.UpdateRiskState(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, summary)
}

// RecordSnapshots 为当前用户全部账户落一份风险快照
func (h *RiskHandler) RecordSnapshots(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "authentication required", "")
		return
	}

	count, err := h.service.RecordDailySnapshots(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{"snapshots": count})
}

func (h *RiskHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		response.ErrorWithStatus(c, http.StatusForbidden, "access denied", "")
	case errors.Is(err, domain.ErrAccountNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "account risk state not found", "")
	case errors.Is(err, domain.ErrInvalidValue), errors.Is(err, domain.ErrInvalidThreshold):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "risk request failed", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "internal server error", "")
	}
}

func splitAccountIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
