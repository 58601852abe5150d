package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/taskledger/internal/events"
	"github.com/nerrad567/taskledger/internal/infrastructure/logging"
)

// WebSocket constants.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64

	wsMaxMessageSize = 4096
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 60 * time.Second
	wsWriteWait      = 10 * time.Second
)

// WSMessage is a frame sent to or from a feed client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub tracks live feed connections per account and delivers each task
// event only to the connections of the account that owns the task.
type Hub struct {
	logger   *logging.Logger
	accounts map[string]map[*WSClient]struct{}
	mu       sync.RWMutex
}

// WSClient is one connected feed.
type WSClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	accountID string
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:   logger,
		accounts: make(map[string]map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client under its account.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	set, ok := h.accounts[client.accountID]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.accounts[client.accountID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "account_id", client.accountID, "clients", h.ClientCount())
}

// Unregister removes a client. Only the goroutine that removes it from the
// map closes its send channel, so shutdown cannot double-close.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	existed := h.remove(client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "account_id", client.accountID, "clients", h.ClientCount())
}

// remove deletes client from the map. Caller holds h.mu.
func (h *Hub) remove(client *WSClient) bool {
	set, ok := h.accounts[client.accountID]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.accounts, client.accountID)
	}
	return true
}

// Publish implements events.Publisher. Only task events are delivered,
// and only to the owning account's connections.
func (h *Hub) Publish(_ context.Context, e events.Event) {
	if e.Entity != events.EntityTask || e.AccountID == "" {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: e.Type,
		Timestamp: e.OccurredAt.Format(time.RFC3339),
		Payload:   e,
	})
	if err != nil {
		h.logger.Error("failed to marshal feed event", "error", err)
		return
	}

	// Snapshot under the hub lock, then send without holding it.
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.accounts[e.AccountID]))
	for client := range h.accounts[e.AccountID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(data) {
			// Slow consumer: drop it rather than block the request path.
			h.logger.Warn("websocket client too slow, disconnecting", "account_id", client.accountID)
			h.Unregister(client)
			if client.conn != nil {
				client.conn.Close()
			}
		}
	}
}

// Disconnect closes every feed of accountID, used when the account is removed.
func (h *Hub) Disconnect(accountID string) {
	h.mu.Lock()
	clients := make([]*WSClient, 0, len(h.accounts[accountID]))
	for client := range h.accounts[accountID] {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Unregister(client)
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.accounts {
		n += len(set)
	}
	return n
}

// AccountClientCount returns the number of feeds open for accountID.
func (h *Hub) AccountClientCount(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.accounts[accountID])
}

// closeAll disconnects every client and closes its send channel so the
// write pumps exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for accountID, set := range h.accounts {
		for client := range set {
			close(client.send)
			if client.conn != nil {
				client.conn.Close()
			}
		}
		delete(h.accounts, accountID)
	}
}

// handleWebSocket upgrades an authenticated request to the caller's feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, wsSendBufferSize),
		accountID: id.AccountID,
	}

	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump consumes client frames until the connection closes. Clients may
// send {"type":"ping"}; everything else is answered with an error frame.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		c.handleMessage(message)
	}
}

// writePump sends queued frames and periodic pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
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

// trySend queues data without blocking. It reports false when the buffer
// is full; a send on a channel closed by a concurrent Unregister is absorbed.
func (c *WSClient) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = true
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
