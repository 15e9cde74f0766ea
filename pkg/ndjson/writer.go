// Package ndjson 实现逐行 JSON 的分块流式响应。
package ndjson

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
)

// ContentType 是流式响应的 Content-Type。
const ContentType = "application/x-ndjson; charset=utf-8"

// Delivery 描述一次帧写入的结果。写入从不抛出客户端断开的错误，
// 调用方据此区分“客户端已离开”与“上游真正失败”。
type Delivery int

const (
	Delivered Delivery = iota
	ChannelClosed
)

func (d Delivery) String() string {
	if d == Delivered {
		return "delivered"
	}
	return "channel_closed"
}

// Writer 把每个值编码为一行 JSON 并立即 flush。
// 一旦某次写入失败或请求上下文结束，之后的写入都直接返回 ChannelClosed。
type Writer struct {
	mu      sync.Mutex
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	opened  bool
	closed  bool
}

// NewWriter 包装一个 ResponseWriter；ctx 通常是请求的上下文。
func NewWriter(ctx context.Context, w http.ResponseWriter) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{ctx: ctx, w: w, flusher: f}
}

// Open 写出响应头，声明这是一个不可缓存、不可缓冲的增量流。
func (w *Writer) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.opened {
		return
	}
	w.opened = true
	h := w.w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	w.w.WriteHeader(http.StatusOK)
	if w.flusher != nil {
		w.flusher.Flush()
	}
}

// Send 写入一帧。
func (w *Writer) Send(v any) Delivery {
	line, err := json.Marshal(v)
	if err != nil {
		return ChannelClosed
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.ctx.Err() != nil {
		w.closed = true
		return ChannelClosed
	}
	if !w.opened {
		w.opened = true
		w.w.Header().Set("Content-Type", ContentType)
	}
	if _, err := w.w.Write(line); err != nil {
		w.closed = true
		return ChannelClosed
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return Delivered
}

// Closed 报告客户端是否已经不可达。
func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
