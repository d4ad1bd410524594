package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/researchkeeper/service/internal/agents"
)

// WebSocket升级器
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 允许所有来源的连接（生产环境中应该限制）
		return true
	},
}

// ProgressEvent 推送给客户端的阶段进度事件
type ProgressEvent struct {
	Type      string `json:"type"` // stage_started
	Stage     string `json:"stage"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Timestamp string `json:"timestamp"`
}

// ProgressHub 研究进度的WebSocket广播中心。
// 所有连接共享同一事件流，连接断开即自动注销。
type ProgressHub struct {
	mu      sync.RWMutex
	writeMu sync.Mutex // gorilla连接不允许并发写，广播统一串行化
	conns   map[*websocket.Conn]bool
}

// NewProgressHub 创建进度广播中心
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		conns: make(map[*websocket.Conn]bool),
	}
}

// HandleProgressWS 处理进度订阅的WebSocket连接
func (hub *ProgressHub) HandleProgressWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[进度推送] WebSocket升级失败: %v", err)
		return
	}

	hub.register(conn)
	log.Printf("[进度推送] 新连接建立, 当前连接数: %d", hub.ConnectionCount())

	// 读循环只用于感知连接关闭
	go func() {
		defer func() {
			hub.unregister(conn)
			conn.Close()
			log.Printf("[进度推送] 连接关闭, 当前连接数: %d", hub.ConnectionCount())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// StageProgressFunc 返回可挂接到流水线的进度回调
func (hub *ProgressHub) StageProgressFunc() agents.StageProgressFunc {
	return func(role agents.StageRole, index, total int) {
		hub.Broadcast(&ProgressEvent{
			Type:      "stage_started",
			Stage:     string(role),
			Index:     index,
			Total:     total,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// Broadcast 向所有连接推送事件，推送失败的连接被移除
func (hub *ProgressHub) Broadcast(event *ProgressEvent) {
	hub.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(hub.conns))
	for conn := range hub.conns {
		conns = append(conns, conn)
	}
	hub.mu.RUnlock()

	hub.writeMu.Lock()
	defer hub.writeMu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("[进度推送] 推送失败, 移除连接: %v", err)
			hub.unregister(conn)
			conn.Close()
		}
	}
}

// ConnectionCount 当前连接数
func (hub *ProgressHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.conns)
}

func (hub *ProgressHub) register(conn *websocket.Conn) {
	hub.mu.Lock()
	hub.conns[conn] = true
	hub.mu.Unlock()
}

func (hub *ProgressHub) unregister(conn *websocket.Conn) {
	hub.mu.Lock()
	delete(hub.conns, conn)
	hub.mu.Unlock()
}
