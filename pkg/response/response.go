// Package response 统一的 HTTP 响应结构
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应体
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 返回 500 错误响应
func Error(c *gin.Context, message string) {
	ErrorWithStatus(c, http.StatusInternalServerError, message, "")
}

// ErrorWithStatus 返回指定状态码的错误响应，detail 可为空
func ErrorWithStatus(c *gin.Context, status int, message, detail string) {
	resp := Response{
		Code:    status,
		Message: message,
	}
	if detail != "" {
		resp.Data = gin.H{"detail": detail}
	}
	c.JSON(status, resp)
}
