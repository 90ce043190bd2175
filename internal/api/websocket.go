package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/blue-hydra/internal/btmon"
	"github.com/nerrad567/blue-hydra/internal/device"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/config"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/logging"
)

// WebSocket constants.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSEventSignal is the event type of every RSSI observation.
	WSEventSignal = "signal"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload narrows or widens the set of addresses a client
// receives signals for. A client with no addresses receives every signal.
type WSSubscribePayload struct {
	Addresses []string `json:"addresses"`
}

// Hub fans signal observations out to WebSocket clients.
//
// It implements device.SignalObserver. ObserveSignal never blocks: a client
// whose buffer is full misses the message.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	broadcast atomic.Uint64
	dropped   atomic.Uint64
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	addresses map[string]struct{}
	mu        sync.RWMutex
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The API binds to a local address by default.
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	if existed {
		close(client.send)
	}
	h.mu.Unlock()

	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// ObserveSignal broadcasts one RSSI observation as a "signal" event.
func (h *Hub) ObserveSignal(sig device.Signal) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: WSEventSignal,
		Timestamp: sig.At.UTC().Format(time.RFC3339Nano),
		Payload:   sig,
	})
	if err != nil {
		h.logger.Error("failed to marshal signal event", "error", err)
		return
	}

	// Sending under the read lock keeps Unregister from closing a channel
	// mid-send; trySend never blocks.
	for client := range h.clients {
		if !client.wants(sig.Address) {
			continue
		}
		if client.trySend(data) {
			h.broadcast.Add(1)
		} else {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Counters returns messages delivered to and dropped by client buffers.
func (h *Hub) Counters() (broadcast, dropped uint64) {
	return h.broadcast.Load(), h.dropped.Load()
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleSignals upgrades the HTTP connection to the signal stream.
//
// An optional "address" query parameter pre-subscribes the client to one
// device; it must be a valid hardware address.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	addresses := make(map[string]struct{})
	if raw := r.URL.Query().Get("address"); raw != "" {
		address, ok := btmon.CanonicalAddress(raw)
		if !ok {
			writeBadRequest(w, "invalid device address")
			return
		}
		addresses[address] = struct{}{}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, wsSendBufferSize),
		addresses: addresses,
	}
	s.hub.Register(client)

	go client.writePump(s.hub.cfg)
	go client.readPump(s.hub.cfg)
}

// readPump reads control messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes queued messages and keepalive pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = time.Minute
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.handleSubscription(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscription adds or removes addresses from the client's filter.
func (c *WSClient) handleSubscription(msg WSMessage) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}

	var sub WSSubscribePayload
	if err := json.Unmarshal(payloadBytes, &sub); err != nil {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	canonical := make([]string, 0, len(sub.Addresses))
	for _, raw := range sub.Addresses {
		address, ok := btmon.CanonicalAddress(raw)
		if !ok {
			c.sendError(msg.ID, "invalid device address: "+raw)
			return
		}
		canonical = append(canonical, address)
	}

	c.mu.Lock()
	for _, address := range canonical {
		if msg.Type == WSTypeSubscribe {
			c.addresses[address] = struct{}{}
		} else {
			delete(c.addresses, address)
		}
	}
	c.mu.Unlock()

	key := "subscribed"
	if msg.Type == WSTypeUnsubscribe {
		key = "unsubscribed"
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: canonical})
}

// wants reports whether the client receives signals for address.
func (c *WSClient) wants(address string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.addresses) == 0 {
		return true
	}
	_, ok := c.addresses[address]
	return ok
}

// trySend queues data without blocking. It reports false when the client
// buffer is full or the client has gone.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendResponse sends a response message to the client.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
