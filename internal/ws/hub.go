package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"roomchat-service/internal/models"
)

// Hub owns the live websocket connections, keyed by session id. Room
// membership lives in the session registry; the hub only writes frames.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Register attaches a connection to a session id.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[sessionID] = &client{conn: conn}
}

// Unregister detaches and forgets the session's connection.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, sessionID)
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send writes an event to a single session. A failed write closes the
// connection and removes it from the hub.
func (h *Hub) Send(sessionID string, event models.ServerEvent) error {
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	err := c.conn.WriteMessage(websocket.TextMessage, event.Encode())
	c.mu.Unlock()
	if err != nil {
		log.Printf("websocket write error: %v", err)
		c.conn.Close()
		h.Unregister(sessionID)
	}
	return err
}
