package model

import "time"

// MessageSearchResult 定义了返回给前端的搜索结果结构。
type MessageSearchResult struct {
	MessageID    string    `json:"messageId"`
	SessionID    string    `json:"sessionId"`
	SessionTitle string    `json:"sessionTitle,omitempty"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Score        float64   `json:"score"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EsMessageDocument 定义了存储在 Elasticsearch 中的消息文档结构。
type EsMessageDocument struct {
	MessageID    string    `json:"message_id"`
	SessionID    string    `json:"session_id"`
	SessionTitle string    `json:"session_title"`
	UserID       uint      `json:"user_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
}
