package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/staynest/staynest-backend/config"
	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/middleware"
)

// Handler handles WebSocket upgrade and connection lifecycle.
type Handler struct {
	log            *zap.SugaredLogger
	hub            *Hub
	pingInterval   time.Duration
	writeTimeout   time.Duration
	allowedOrigins []string
	isDevelopment  bool
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, serverCfg *config.ServerConfig) *Handler {
	return &Handler{
		log:            logger.GetLogger().Named("websocket_handler"),
		hub:            hub,
		pingInterval:   hub.pingInterval,
		writeTimeout:   hub.writeTimeout,
		allowedOrigins: serverCfg.AllowedOrigins,
		isDevelopment:  serverCfg.Environment == config.EnvDevelopment,
	}
}

// getAcceptOptions returns WebSocket accept options based on configuration.
// In development, all origins are allowed. In production, only configured origins.
func (h *Handler) getAcceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	}

	if h.isDevelopment {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.allowedOrigins
	}

	return opts
}

// ClientMessage represents a message from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message to the client. For push events, Type
// carries the client-facing method name (ReceiveNotification, MessageRead, ...).
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const (
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeConnected = "connected"
	MessageTypeError     = "error"
)

// HandleWebSocket handles WebSocket upgrade and runs the connection loops.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	// User ID was set by the WS auth middleware
	userID, exists := c.Get(string(middleware.UserIDKey))
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userIDStr := userID.(string)

	ws, err := websocket.Accept(c.Writer, c.Request, h.getAcceptOptions())
	if err != nil {
		h.log.Errorw("Failed to accept WebSocket connection",
			"userID", userIDStr,
			"error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	conn := h.hub.Register(userIDStr, ws)
	defer h.hub.Unregister(conn.ConnectionID)

	if err := h.sendMessage(ctx, ws, ServerMessage{
		Type: MessageTypeConnected,
		Payload: map[string]interface{}{
			"userId":       userIDStr,
			"connectionId": conn.ConnectionID,
		},
	}); err != nil {
		h.log.Errorw("Failed to send connected message",
			"userID", userIDStr,
			"error", err)
		return
	}

	h.log.Infow("WebSocket connection established",
		"userID", userIDStr,
		"connectionID", conn.ConnectionID)

	errCh := make(chan error, 3)

	go func() { errCh <- h.readLoop(ctx, ws, userIDStr) }()
	go func() { errCh <- h.writeLoop(ctx, ws, conn) }()
	go func() { errCh <- h.pingLoop(ctx, ws) }()

	// Wait for any loop to finish (usually due to error or close)
	err = <-errCh
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		h.log.Warnw("WebSocket connection error",
			"userID", userIDStr,
			"connectionID", conn.ConnectionID,
			"error", err)
	}
}

// readLoop handles incoming messages from the client.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var msg ClientMessage
		err := wsjson.Read(ctx, ws, &msg)
		if err != nil {
			return err
		}

		switch msg.Type {
		case MessageTypePing:
			_ = h.sendMessage(ctx, ws, ServerMessage{Type: MessageTypePong})
		default:
			h.log.Debugw("Unknown message type from client",
				"userID", userID,
				"type", msg.Type)
		}
	}
}

// writeLoop drains the connection's send channel onto the wire, framing each
// event under its client-facing method name. Per-connection FIFO order is
// guaranteed by the channel.
func (h *Handler) writeLoop(ctx context.Context, ws *websocket.Conn, conn *Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-conn.SendChannel():
			if !ok {
				return nil // Channel closed
			}

			msg := ServerMessage{
				Type:    event.Type.ClientMethod(),
				Payload: event.Payload,
			}

			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(writeCtx, ws, msg)
			cancel()

			if err != nil {
				return err
			}
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (h *Handler) pingLoop(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// sendMessage sends a single message to the client with the write timeout.
func (h *Handler) sendMessage(ctx context.Context, ws *websocket.Conn, msg ServerMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, ws, msg)
}

// GetHub returns the hub for testing or advanced usage.
func (h *Handler) GetHub() *Hub {
	return h.hub
}
