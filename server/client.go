package server

import (
	"sync"
	"time"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/protocol"

	"github.com/gorilla/websocket"
)

// Client represents one WebSocket connection
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan *protocol.Event
	mu     sync.Mutex
	closed bool
}

// NewClient wraps a connection with a buffered outbound queue
func NewClient(id string, conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan *protocol.Event, sendBuffer),
	}
}

// queue enqueues an event without blocking. Delivery is fire-and-forget:
// a closed client or a full buffer drops the event.
func (c *Client) queue(ev *protocol.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}

// close closes the outbound queue exactly once
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// readPump reads events from the connection until it fails, then
// unregisters the client. Runs as one goroutine per connection.
func (h *Hub) readPump(client *Client) {
	log := logger.Get()
	defer func() {
		if r := recover(); r != nil {
			log.ErrorWith("panic recovered in readPump", "clientID", client.ID, "panic", r)
		}
		h.Disconnect(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(h.ws.ReadLimit)
	client.Conn.SetReadDeadline(time.Now().Add(h.ws.PongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(h.ws.PongWait))
		return nil
	})

	for {
		var ev protocol.Event
		if err := client.Conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WarnWith("websocket read error", "clientID", client.ID, "error", err)
			}
			break
		}
		h.handleEvent(client, &ev)
	}
}

// writePump drains the outbound queue and keeps the connection alive
// with periodic pings. Runs as one goroutine per connection.
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.ws.PingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(h.ws.WriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(h.ws.WriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
