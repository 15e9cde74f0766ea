// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/log"
)

// 上下文中存放认证结果的键。
const (
	ContextUser   = "user"
	ContextClaims = "claims"
)

// BearerToken 从 Authorization 头或 token 查询参数中提取 access token。
func BearerToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return c.Query("token")
}

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 验证通过后把完整的 User 与 claims 存入 Gin 上下文。
func AuthMiddleware(userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "请求未包含授权信息",
				"data":    nil,
			})
			return
		}

		user, claims, err := userService.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			log.Warnf("AuthMiddleware: 认证失败 path=%s, error: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "无效或已过期的 token",
				"data":    nil,
			})
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}
