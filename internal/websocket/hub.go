// Package websocket manages live WebSocket connections. Each open tab or
// device holds its own connection; a user may have several at once. The hub
// owns the transport handles and keeps the connection registry in sync with
// connect/disconnect lifecycle events.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/staynest/staynest-backend/internal/registry"
	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/types"
)

// Hub manages WebSocket connections for all users.
type Hub struct {
	log          *zap.SugaredLogger
	registry     *registry.ConnectionRegistry
	conns        map[string]*Conn // connectionID -> connection
	mu           sync.RWMutex
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
}

// Conn represents a single live WebSocket connection for a user session.
type Conn struct {
	ConnectionID string
	UserID       string
	ws           *websocket.Conn
	sendCh       chan types.Event // buffered channel for outbound events
	mu           sync.Mutex
	closed       bool
}

// HubConfig contains configuration options for the Hub.
type HubConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// DefaultHubConfig returns sensible defaults for Hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   256,
	}
}

// NewHub creates a new WebSocket hub around the given registry.
func NewHub(reg *registry.ConnectionRegistry, cfg ...HubConfig) *Hub {
	config := DefaultHubConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}

	return &Hub{
		log:          logger.GetLogger().Named("websocket_hub"),
		registry:     reg,
		conns:        make(map[string]*Conn),
		shutdownCh:   make(chan struct{}),
		pingInterval: config.PingInterval,
		writeTimeout: config.WriteTimeout,
		sendBuffer:   config.SendBuffer,
	}
}

// Register adds a new WebSocket connection for a user and records it in the
// registry. A fresh connection ID is assigned; existing connections for the
// same user are left alone (multi-tab support).
func (h *Hub) Register(userID string, ws *websocket.Conn) *Conn {
	conn := &Conn{
		ConnectionID: uuid.NewString(),
		UserID:       userID,
		ws:           ws,
		sendCh:       make(chan types.Event, h.sendBuffer),
	}

	h.mu.Lock()
	h.conns[conn.ConnectionID] = conn
	h.mu.Unlock()

	h.registry.Register(userID, conn.ConnectionID)

	h.log.Infow("WebSocket connection registered",
		"userID", userID,
		"connectionID", conn.ConnectionID)

	return conn
}

// Unregister removes a connection from the hub and the registry and closes it.
// Unknown connection IDs are a no-op.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connID)
	h.mu.Unlock()

	h.registry.Unregister(connID)
	h.closeConn(conn, "unregistered")
}

// Send queues an event for delivery on a single connection. It never blocks:
// if the connection's buffer is full or the connection is closed, the event
// is dropped and an error returned so the caller can count the failure.
// Unknown connection IDs (racing disconnects) are a successful no-op.
func (h *Hub) Send(connID string, event types.Event) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return nil
	}

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if closed {
		return fmt.Errorf("connection %s is closed", connID)
	}

	select {
	case conn.sendCh <- event:
		return nil
	default:
		h.log.Warnw("Connection send buffer full, dropping event",
			"connectionID", connID,
			"userID", conn.UserID,
			"eventType", event.Type)
		return fmt.Errorf("send buffer full for connection %s", connID)
	}
}

// closeConn closes a connection and releases its resources.
func (h *Hub) closeConn(conn *Conn, reason string) {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return
	}
	conn.closed = true
	conn.mu.Unlock()

	if conn.ws != nil {
		_ = conn.ws.Close(websocket.StatusNormalClosure, reason)
	}
	close(conn.sendCh)

	h.log.Infow("WebSocket connection closed",
		"userID", conn.UserID,
		"connectionID", conn.ConnectionID,
		"reason", reason)
}

// GetConn returns the connection for a connection ID, if present.
func (h *Hub) GetConn(connID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown gracefully closes all connections.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		close(h.shutdownCh)

		h.mu.Lock()
		conns := make([]*Conn, 0, len(h.conns))
		for _, conn := range h.conns {
			conns = append(conns, conn)
		}
		h.conns = make(map[string]*Conn)
		h.mu.Unlock()

		for _, conn := range conns {
			h.registry.Unregister(conn.ConnectionID)
			h.closeConn(conn, "server shutdown")
		}
	})

	h.log.Info("WebSocket hub shutdown complete")
	return nil
}

// SendChannel returns the outbound event channel for a connection.
// The handler's write loop drains it onto the wire.
func (c *Conn) SendChannel() <-chan types.Event {
	return c.sendCh
}

// IsClosed returns whether the connection is closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
