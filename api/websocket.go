package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hedgegrid/logger"
	"hedgegrid/trader"
)

const statusPushInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard is same-host or reverse-proxied, CORS handled above
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub pushes engine status snapshots to connected dashboard clients.
// Registered conns are written only from the broadcast goroutine; the
// websocket package forbids concurrent writers.
type wsHub struct {
	engine   *trader.Engine
	interval time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	stopCh  chan struct{}
}

func newWSHub(engine *trader.Engine) *wsHub {
	return &wsHub{
		engine:   engine,
		interval: statusPushInterval,
		clients:  make(map[*websocket.Conn]struct{}),
		stopCh:   make(chan struct{}),
	}
}

func (h *wsHub) start() {
	go h.broadcastLoop()
}

func (h *wsHub) stop() {
	select {
	case <-h.stopCh:
	default:
		close(h.stopCh)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

func (h *wsHub) handleConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	// Immediate snapshot so the client doesn't wait a full interval.
	// Written before registration: once the conn is in the client set
	// the broadcast goroutine owns all writes to it.
	if err := writeStatus(conn, h.engine.Status()); err != nil {
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	logger.Infof("📡 websocket client connected (%d active)", count)

	// Drain reads to notice closure; clients never send payloads
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *wsHub) broadcastLoop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			status := h.engine.Status()
			h.mu.Lock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.Unlock()

			for _, conn := range conns {
				if err := writeStatus(conn, status); err != nil {
					h.drop(conn)
				}
			}
		}
	}
}

func writeStatus(conn *websocket.Conn, status trader.Status) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(status)
}

func (h *wsHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
