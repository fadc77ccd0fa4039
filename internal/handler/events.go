package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clashsub/internal/logger"
)

// Event 推送给管理端的转换事件
type Event struct {
	Type       string    `json:"type"`
	URL        string    `json:"url"`
	Strategy   string    `json:"strategy"`
	ProxyCount int       `json:"proxy_count"`
	GroupCount int       `json:"group_count"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// EventHub 维护已连接的管理端 WebSocket, 向所有连接广播事件。
// 写失败的连接直接关闭并移除, 不影响其余连接
type EventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{conns: make(map[*websocket.Conn]struct{})}
}

// Publish 向所有在线连接广播一条事件
func (h *EventHub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(event); err != nil {
			_ = conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Close 关闭所有连接
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		_ = conn.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

func (h *EventHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		_ = conn.Close()
		delete(h.conns, conn)
	}
	h.mu.Unlock()
}

var eventUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域控制由外层 CORS 中间件负责
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewEventsHandler 把请求升级为 WebSocket 并挂到事件中心
func NewEventsHandler(hub *EventHub) http.Handler {
	if hub == nil {
		panic("events handler requires hub")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := eventUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("WebSocket升级失败", "error", err)
			return
		}

		hub.add(conn)

		// 读循环只用于感知断开
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}
