// server/internal/socket/hub.go
package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"vital-route-api-server/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 20 * time.Second
	sendBuffer = 16
)

// Envelope is every message the server pushes over a socket.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is one websocket connection. Only its write pump writes to conn.
type Client struct {
	ID     string
	UserID string
	Role   models.Role
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	// latest holds at most one pending snapshot; a newer one replaces it.
	latest   chan []byte
	latestMu sync.Mutex
}

// Hub keeps track of connected clients, keyed by connection id.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a connection. A user may hold several at once.
func (h *Hub) Register(userID string, role models.Role, conn *websocket.Conn) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		latest: make(chan []byte, 1),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.stop()
		return c
	}
	h.clients[c.ID] = c
	h.mu.Unlock()
	log.WithFields(log.Fields{"userId": userID, "role": role, "conn": c.ID}).Info("websocket client registered")
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()
	if ok {
		c.stop()
		log.WithFields(log.Fields{"userId": c.UserID, "conn": c.ID}).Info("websocket client unregistered")
	}
}

// Close stops every client and refuses new ones. Handlers watching Done then
// close their connections, which http.Server.Shutdown does not do for hijacked ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.stop()
	}
	log.WithField("clients", len(clients)).Info("websocket hub closed")
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send pushes a message to every connection of userID. An offline user is not an error.
func (h *Hub) Send(userID, event string, payload interface{}) error {
	msg, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		return err
	}
	h.each(func(c *Client) bool { return c.UserID == userID }, msg)
	return nil
}

// NotifyRole pushes a message to every connection whose user has role.
func (h *Hub) NotifyRole(role models.Role, event string, payload interface{}) {
	msg, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		log.WithError(err).WithField("event", event).Error("websocket: marshal notice")
		return
	}
	h.each(func(c *Client) bool { return c.Role == role }, msg)
}

func (h *Hub) each(match func(*Client) bool, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if match(c) && !c.Enqueue(msg) {
			log.WithField("conn", c.ID).Warn("websocket: send buffer full, dropping message")
		}
	}
}

// Enqueue queues msg for the write pump without blocking.
func (c *Client) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// SendJSON wraps payload in an Envelope and queues it.
func (c *Client) SendJSON(event string, payload interface{}) error {
	msg, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		return err
	}
	if !c.Enqueue(msg) {
		log.WithField("conn", c.ID).Warn("websocket: send buffer full, dropping message")
	}
	return nil
}

// SendLatest queues a state snapshot. Unlike SendJSON it never queues behind
// stale snapshots: an unsent one is replaced.
func (c *Client) SendLatest(event string, payload interface{}) error {
	msg, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return nil
	default:
	}
	c.latestMu.Lock()
	defer c.latestMu.Unlock()
	select {
	case <-c.latest:
	default:
	}
	c.latest <- msg
	return nil
}

// Done is closed once the client is unregistered or its pump fails.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) stop() {
	c.once.Do(func() { close(c.done) })
}

// WritePump writes queued messages and keepalive pings until ctx ends or a write fails.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.stop()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-c.done:
			return
		case msg := <-c.send:
			if !c.write(msg) {
				return
			}
		case msg := <-c.latest:
			if !c.write(msg) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msg []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.WithError(err).WithField("conn", c.ID).Debug("websocket write failed")
		return false
	}
	return true
}
