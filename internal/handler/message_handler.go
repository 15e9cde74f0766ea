package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/log"
	"llm-chat-go/pkg/ndjson"
)

// MessageHandler 处理消息列表、手动写入以及流式回复。
type MessageHandler struct {
	messageService service.MessageService
	chatService    service.ChatService
}

// NewMessageHandler 创建一个新的 MessageHandler。
func NewMessageHandler(messageService service.MessageService, chatService service.ChatService) *MessageHandler {
	return &MessageHandler{messageService: messageService, chatService: chatService}
}

// StreamRequest 是流式回复的请求体，conversationId 是 sessionId 的别名。
type StreamRequest struct {
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`
	Prompt         string `json:"prompt"`
}

func (r StreamRequest) sessionID() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.ConversationID
}

func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.messageService.List(currentUser(c).ID, c.Param("sessionId"))
	if err != nil {
		writeError(c, "ListMessages", err)
		return
	}
	ok(c, messages)
}

func (h *MessageHandler) Create(c *gin.Context) {
	var req service.MessageCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	msg, err := h.messageService.Create(currentUser(c).ID, req)
	if err != nil {
		writeError(c, "CreateMessage", err)
		return
	}
	created(c, msg)
}

// Stream 处理 POST /messages/stream。
// 校验与归属错误在通道打开前以普通 JSON 返回；通道打开后只会出现 delta / error / done 帧。
func (h *MessageHandler) Stream(c *gin.Context) {
	var req StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}

	user := currentUser(c)
	turn, err := h.chatService.StartTurn(c.Request.Context(), user.ID, req.sessionID(), req.Prompt)
	if err != nil {
		writeError(c, "StreamMessage", err)
		return
	}

	w := ndjson.NewWriter(c.Request.Context(), c.Writer)
	w.Open()
	res := h.chatService.Relay(c.Request.Context(), turn, w)
	log.Infow("stream finished",
		"userId", user.ID,
		"sessionId", turn.Session.ID,
		"messageId", res.MessageID,
		"streamError", res.StreamError,
		"clientGone", res.ClientGone,
	)
}
