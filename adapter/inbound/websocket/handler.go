package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ajkula/GoNotify/domain/port/inbound"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const writeWait = 10 * time.Second

// Handler streams watcher results to WebSocket clients
type Handler struct {
	broadcaster inbound.EventBroadcaster
	upgrader    websocket.Upgrader
	connections map[string]*websocketConnection
	logger      outbound.Logger
	mu          sync.RWMutex
}

// websocketConnection is one active client
type websocketConnection struct {
	conn         *websocket.Conn
	subscription inbound.Subscription
	writeMu      sync.Mutex
}

// NewHandler creates a WebSocket handler fed by broadcaster
func NewHandler(broadcaster inbound.EventBroadcaster, logger outbound.Logger) *Handler {
	if logger == nil {
		logger = outbound.NopLogger{}
	}
	return &Handler{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin checks are done by the CORS middleware
			},
		},
		connections: make(map[string]*websocketConnection),
		logger:      logger,
	}
}

// HandleConnection upgrades the request and starts streaming
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Error upgrading to WebSocket", "error", err)
		return
	}

	sub := h.broadcaster.Subscribe()
	wsConn := &websocketConnection{conn: conn, subscription: sub}

	h.mu.Lock()
	h.connections[sub.ID()] = wsConn
	h.mu.Unlock()

	wsConn.writeJSON(map[string]string{
		"type":           "connected",
		"subscriptionId": sub.ID(),
	})

	h.logger.Info("WebSocket client connected", "subscription", sub.ID(), "remote", r.RemoteAddr)

	go h.streamResults(wsConn)
	go h.handleWebSocketSession(wsConn)
}

// streamResults forwards every result until the subscription is closed
func (h *Handler) streamResults(wsConn *websocketConnection) {
	for result := range wsConn.subscription.C() {
		if err := wsConn.writeJSON(result); err != nil {
			h.logger.Debug("WebSocket write failed", "subscription", wsConn.subscription.ID(), "error", err)
			wsConn.conn.Close()
			return
		}
	}

	wsConn.writeMu.Lock()
	wsConn.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"),
		time.Now().Add(writeWait))
	wsConn.writeMu.Unlock()
}

// handleWebSocketSession reads client messages until the connection drops
func (h *Handler) handleWebSocketSession(wsConn *websocketConnection) {
	defer h.release(wsConn)

	for {
		messageType, data, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket error", "error", err)
			}
			return
		}

		h.handleClientMessage(wsConn, messageType, data)
	}
}

// handleClientMessage answers pings; everything else is ignored
func (h *Handler) handleClientMessage(wsConn *websocketConnection, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var message map[string]any
	if err := json.Unmarshal(data, &message); err != nil {
		h.logger.Debug("Error parsing client message", "error", err)
		return
	}

	if msgType, _ := message["type"].(string); msgType == "ping" {
		wsConn.writeJSON(map[string]string{"type": "pong"})
	}
}

func (h *Handler) release(wsConn *websocketConnection) {
	id := wsConn.subscription.ID()

	h.mu.Lock()
	_, exists := h.connections[id]
	delete(h.connections, id)
	h.mu.Unlock()

	if exists {
		h.broadcaster.Unsubscribe(id)
	}
	wsConn.conn.Close()
	h.logger.Info("WebSocket client disconnected", "subscription", id)
}

// ConnectionCount returns the number of connected clients
func (h *Handler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Cleanup disconnects every client
func (h *Handler) Cleanup() {
	h.mu.Lock()
	connections := h.connections
	h.connections = make(map[string]*websocketConnection)
	h.mu.Unlock()

	for id, wsConn := range connections {
		h.broadcaster.Unsubscribe(id)
		wsConn.conn.Close()
	}
}

func (c *websocketConnection) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}
