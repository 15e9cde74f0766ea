package service

// 实时事件名称，与前端的订阅保持一致。
const (
	EventMessageNew    = "message:new"
	EventMessageStream = "message:stream"
	EventMessageUpdate = "message:update"
	EventMessageDone   = "message:done"
)

// EventPublisher 把会话内的事件广播给订阅者，实现方不得阻塞调用方。
type EventPublisher interface {
	Publish(sessionID, event string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}

// StreamEvent 是 message:stream 的负载。
type StreamEvent struct {
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
}

// DoneEvent 是 message:done 的负载。
type DoneEvent struct {
	MessageID string `json:"messageId"`
}
