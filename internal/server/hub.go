package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeDeadline = 200 * time.Millisecond

// Hub tracks connected WebSocket clients and fans records out to them.
// A client that cannot keep up is closed and dropped; buffering for slow
// consumers is not the pipeline's job.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool)}
}

// Add registers a client connection.
func (h *Hub) Add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

// Remove unregisters a client connection.
func (h *Hub) Remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	return clients
}

// Broadcast sends one text message to every client, dropping the ones that
// fail to accept it in time.
func (h *Hub) Broadcast(msg []byte) {
	for _, c := range h.snapshot() {
		_ = c.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = c.Close()
			h.Remove(c)
		}
	}
}
