package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/model"
	"llm-chat-go/pkg/log"
	"llm-chat-go/pkg/ndjson"
)

const maxLoggedBody = 2048

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	if w.body.Len() < maxLoggedBody && !isStreaming(w.Header().Get("Content-Type")) {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func isStreaming(contentType string) bool {
	return strings.HasPrefix(contentType, strings.SplitN(ndjson.ContentType, ";", 2)[0])
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
// 流式响应只记录元数据；密码类请求体不落日志。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		path := c.Request.URL.Path
		reqLogged := truncate(requestBody)
		if strings.Contains(path, "/auth/") {
			reqLogged = "[redacted]"
		}

		var userID uint
		if u, exists := c.Get(ContextUser); exists {
			if user, ok := u.(*model.User); ok {
				userID = user.ID
			}
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"userId", userID,
			"requestBody", reqLogged,
			"responseBody", truncate(blw.body.Bytes()),
		)
	}
}
