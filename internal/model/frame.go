package model

// 流式响应中的三种帧，每帧编码为一行 JSON。

// DeltaFrame 携带一个文本片段。
type DeltaFrame struct {
	Delta string `json:"delta"`
}

// ErrorFrame 表示流级别的错误，最多出现一次。
type ErrorFrame struct {
	Error string `json:"error"`
}

// DoneFrame 总是最后一帧。
type DoneFrame struct {
	Done      bool   `json:"done"`
	MessageID string `json:"messageId"`
}

// StreamErrorCode 是 ErrorFrame 的固定取值。
const StreamErrorCode = "stream_error"
