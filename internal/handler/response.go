// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/middleware"
	"llm-chat-go/internal/model"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/llm"
	"llm-chat-go/pkg/log"
	"llm-chat-go/pkg/token"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    data,
	})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    nil,
	})
}

// statusOf 把业务错误映射为 HTTP 状态码。
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, llm.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError 输出统一的错误响应；服务端错误不向客户端暴露细节。
func writeError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
		fail(c, status, http.StatusText(status))
		return
	}
	log.Warnf("%s: %v", op, err)
	fail(c, status, err.Error())
}

// currentUser 取出 AuthMiddleware 放入的用户。
func currentUser(c *gin.Context) *model.User {
	return c.MustGet(middleware.ContextUser).(*model.User)
}

func currentClaims(c *gin.Context) *token.CustomClaims {
	return c.MustGet(middleware.ContextClaims).(*token.CustomClaims)
}
