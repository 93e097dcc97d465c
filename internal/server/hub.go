package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Message tells presence clients that a principal's records changed.
type Message struct {
	Type      string `json:"type"`
	Procedure string `json:"procedure,omitempty"`
}

type client struct {
	user string
	conn *ws.Conn
	send chan []byte
}

// Hub tracks presence connections per principal.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *slog.Logger
	onCount func(int)
}

func NewHub(logger *slog.Logger, onCount func(int)) *Hub {
	if onCount == nil {
		onCount = func(int) {}
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		onCount: onCount,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.onCount(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.onCount(n)
}

// Broadcast sends msg to every connection of user. Slow clients miss it.
func (h *Hub) Broadcast(user string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.user != user {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := ws.Accept(c.Writer, c.Request, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	cl := &client{user: c.GetString(userKey), conn: conn, send: make(chan []byte, sendBufferSize)}

	s.hub.register(cl)
	defer s.hub.unregister(cl)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go writePump(ctx, cl)
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			_ = c.conn.Close(ws.StatusGoingAway, "server closing")
			return
		}
	}
}
