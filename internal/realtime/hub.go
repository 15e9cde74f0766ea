// Package realtime 实现基于 websocket 的会话房间广播。
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"llm-chat-go/internal/model"
	"llm-chat-go/pkg/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// SessionOwner 用于在加入房间前校验会话归属。
type SessionOwner interface {
	Get(userID uint, id string) (*model.Session, error)
}

// Envelope 是服务端下发的统一消息格式。
type Envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// inbound 是客户端上行的指令。
type inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Typing    bool   `json:"typing"`
}

// TypingEvent 是 typing 转发的负载。
type TypingEvent struct {
	UserID uint `json:"userId"`
	Typing bool `json:"typing"`
}

// Hub 维护 sessionID → 连接集合 的房间表。
// 广播从不阻塞：发送缓冲已满的慢客户端会被断开。
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	clients  map[*client]struct{}
	sessions SessionOwner
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	userID    uint
	send      chan []byte
	rooms     map[string]struct{}
	closeOnce sync.Once
}

// NewHub 创建房间管理器。
func NewHub(sessions SessionOwner) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*client]struct{}),
		clients:  make(map[*client]struct{}),
		sessions: sessions,
	}
}

// Publish 把事件广播给房间内的所有连接。
func (h *Hub) Publish(sessionID, event string, payload any) {
	msg, err := json.Marshal(Envelope{Type: event, SessionID: sessionID, Data: payload})
	if err != nil {
		log.Errorf("序列化实时事件失败: %v", err)
		return
	}
	h.broadcast(sessionID, msg, nil)
}

func (h *Hub) broadcast(sessionID string, msg []byte, except *client) {
	h.mu.RLock()
	var slow []*client
	for c := range h.rooms[sessionID] {
		if c == except {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warnf("websocket 客户端发送缓冲已满，断开连接 user=%d", c.userID)
		h.unregister(c)
	}
}

// RoomSize 返回房间内的连接数。
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Serve 接管一个已升级的连接，直到连接关闭才返回。
func (h *Hub) Serve(conn *websocket.Conn, userID uint) {
	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Infof("WebSocket 连接已建立，用户: %d", userID)

	go c.writePump()
	c.readPump()
}

// Close 断开全部连接，用于优雅停机。
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for sid := range c.rooms {
			if room := h.rooms[sid]; room != nil {
				delete(room, c)
				if len(room) == 0 {
					delete(h.rooms, sid)
				}
			}
		}
	}
	h.mu.Unlock()
	c.closeOnce.Do(func() { close(c.send) })
}

func (h *Hub) join(c *client, sessionID string) bool {
	if _, err := h.sessions.Get(c.userID, sessionID); err != nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	room := h.rooms[sessionID]
	if room == nil {
		room = make(map[*client]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
	c.rooms[sessionID] = struct{}{}
	return true
}

func (h *Hub) leave(c *client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.rooms, sessionID)
	if room := h.rooms[sessionID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

func (h *Hub) inRoom(c *client, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[sessionID]
	return ok
}

// reply 直接回复当前连接。
func (c *client) reply(env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	_, alive := c.hub.clients[c]
	if alive {
		select {
		case c.send <- msg:
		default:
		}
	}
	c.hub.mu.RUnlock()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.SessionID == "" {
			c.reply(Envelope{Type: "error", Data: "invalid message"})
			continue
		}
		switch in.Type {
		case "join":
			if c.hub.join(c, in.SessionID) {
				c.reply(Envelope{Type: "joined", SessionID: in.SessionID})
			} else {
				c.reply(Envelope{Type: "error", SessionID: in.SessionID, Data: "session not found"})
			}
		case "leave":
			c.hub.leave(c, in.SessionID)
		case "typing":
			if !c.hub.inRoom(c, in.SessionID) {
				continue
			}
			msg, _ := json.Marshal(Envelope{
				Type:      "typing",
				SessionID: in.SessionID,
				Data:      TypingEvent{UserID: c.userID, Typing: in.Typing},
			})
			c.hub.broadcast(in.SessionID, msg, c)
		default:
			c.reply(Envelope{Type: "error", Data: "unknown message type"})
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
