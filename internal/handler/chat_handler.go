package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"llm-chat-go/internal/realtime"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatHandler 负责把 websocket 连接交给实时房间。
type ChatHandler struct {
	hub         *realtime.Hub
	userService service.UserService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(hub *realtime.Hub, userService service.UserService) *ChatHandler {
	return &ChatHandler{hub: hub, userService: userService}
}

// Handle 处理 GET /chat/:token。token 在升级前校验，失败时返回 401 而不是建立连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	user, _, err := h.userService.Authenticate(c.Request.Context(), c.Param("token"))
	if err != nil {
		log.Warnf("WebSocket 认证失败: %v", err)
		fail(c, http.StatusUnauthorized, "无效或已过期的 token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("升级 WebSocket 连接失败: %v", err)
		return
	}
	h.hub.Serve(conn, user.ID)
	log.Infof("WebSocket 连接已关闭，用户: %d", user.ID)
}
