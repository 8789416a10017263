package chathub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatwire/backend/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per connection. A peer that stops draining falls
	// behind by at most this many events before sends start to drop.
	sendBuffer = 256
)

// WebSocketClient binds one websocket connection to the hub. It owns the
// read and write pumps for the connection and implements Client.
type WebSocketClient struct {
	id       string
	identity models.Identity
	conn     *websocket.Conn
	hub      *Hub

	send chan models.ServerEvent

	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient wraps an upgraded connection. The caller registers the
// client with the hub and then calls Run exactly once.
func NewWebSocketClient(conn *websocket.Conn, identity models.Identity, hub *Hub) *WebSocketClient {
	return &WebSocketClient{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		hub:      hub,
		send:     make(chan models.ServerEvent, sendBuffer),
	}
}

func (c *WebSocketClient) ConnID() string            { return c.id }
func (c *WebSocketClient) Identity() models.Identity { return c.identity }

// TrySend enqueues an event for the write pump without blocking. It reports
// false when the connection is closed or its buffer is full; the caller
// decides whether the drop matters.
func (c *WebSocketClient) TrySend(ev models.ServerEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close marks the client unwritable and releases the write pump. Idempotent;
// concurrent TrySend calls observe the closed flag under the same mutex, so
// the channel is never written after it is closed.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run starts the read and write pumps. It returns immediately; the pumps run
// until the connection drops.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump reads frames from the socket and hands them to the hub one at a
// time, so a connection's own events are always processed in arrival order.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// The socket is alive, keep the presence marker fresh.
		if _, err := c.hub.Presence.MarkOnline(c.identity.ID); err != nil {
			log.Printf("WARNING: refreshing presence for user %s: %v", c.identity.ID, err)
		}
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARNING: websocket read error on connection %s: %v", c.id, err)
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("WARNING: malformed frame from connection %s: %v", c.id, err)
			continue
		}
		c.hub.HandleEvent(context.Background(), c, ev)
	}
}

// writePump serializes all writes to the socket: queued events and the
// periodic pings that keep the read deadline on the peer side moving.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
