// Package http 账户上下文的 HTTP 接口层
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/aetheris/internal/account/application"
	"github.com/wyfcoding/aetheris/internal/account/domain"
	"github.com/wyfcoding/aetheris/pkg/logger"
	"github.com/wyfcoding/aetheris/pkg/middleware"
	"github.com/wyfcoding/aetheris/pkg/response"
)

// AccountHandler 账户 HTTP 处理器
type AccountHandler struct {
	service *application.AccountApplicationService
}

// NewAccountHandler 创建账户 HTTP 处理器
func NewAccountHandler(service *application.AccountApplicationService) *AccountHandler {
	return &AccountHandler{service: service}
}

// RegisterRoutes 注册账户路由
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.CreateAccount)
		accounts.GET("", h.ListAccounts)
		accounts.GET("/:id", h.GetAccount)
		accounts.PUT("/:id/balance", h.UpdateBalance)
		accounts.PUT("/:id/prop-firm", h.BindPropFirm)
		accounts.POST("/reset-day", h.ResetDay)
		accounts.DELETE("/:id", h.DeleteAccount)
	}
}

// CreateAccount 开立账户
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	var cmd application.CreateAccountCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.service.CreateAccount(c.Request.Context(), userID, cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Response{Code: 0, Message: "success", Data: account})
}

// ListAccounts 列出当前用户的全部账户
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	accounts, err := h.service.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, accounts)
}

// GetAccount 获取单个账户
func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	account, err := h.service.GetAccount(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, account)
}

type updateBalanceRequest struct {
	Balance string `json:"balance" binding:"required"`
}

// UpdateBalance 同步账户余额
func (h *AccountHandler) UpdateBalance(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	var req updateBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.service.UpdateBalance(c.Request.Context(), userID, c.Param("id"), req.Balance)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, account)
}

// BindPropFirm 绑定自营商规则
func (h *AccountHandler) BindPropFirm(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	var cmd application.BindPropFirmCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.service.BindPropFirm(c.Request.Context(), userID, c.Param("id"), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, account)
}

// ResetDay 日切：重置当日起始余额
func (h *AccountHandler) ResetDay(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	count, err := h.service.ResetDay(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"reset": count})
}

// DeleteAccount 删除账户
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	if err := h.service.DeleteAccount(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *AccountHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "account not found", err.Error())
	case errors.Is(err, domain.ErrInvalidAccount),
		errors.Is(err, domain.ErrInvalidBalance),
		errors.Is(err, domain.ErrInvalidPropFirm):
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
	default:
		logger.Error(c.Request.Context(), "account request failed", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}
