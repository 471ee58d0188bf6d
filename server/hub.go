package server

import (
	"sync"
	"time"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/presence"
	"chatrelay/pkg/protocol"
	"chatrelay/pkg/storage"
)

// Scope selects which connections a broadcast reaches
type Scope int

const (
	ScopeAll Scope = iota
	ScopeAllExceptSender
	ScopeRoom
	ScopeRoomExceptSender
)

// outbound is one broadcast waiting to be fanned out
type outbound struct {
	event  *protocol.Event
	scope  Scope
	sender string
	room   string
}

// Hub routes events between connections. All connection map mutations
// happen on the Run goroutine; fan-out never blocks on a slow client.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *outbound
	done       chan struct{}

	tracker *presence.Tracker
	store   storage.Store
	ws      config.WebSocketConfig
	welcome string

	mu        sync.RWMutex
	running   bool
	runningMu sync.Mutex
}

// NewHub creates a hub over the given presence tracker. store may be
// nil when the roster is disabled.
func NewHub(tracker *presence.Tracker, store storage.Store, ws config.WebSocketConfig, welcome string) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outbound, 256),
		done:       make(chan struct{}),
		tracker:    tracker,
		store:      store,
		ws:         ws,
		welcome:    welcome,
	}
}

// Run processes connection and broadcast events until Stop is called
func (h *Hub) Run() {
	h.runningMu.Lock()
	if h.running {
		logger.Get().Warn("hub already running, skipping duplicate start")
		h.runningMu.Unlock()
		return
	}
	h.running = true
	h.runningMu.Unlock()

	defer func() {
		h.runningMu.Lock()
		h.running = false
		h.runningMu.Unlock()
	}()

	log := logger.Get()
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if existing, exists := h.clients[client.ID]; exists {
				log.InfoWith("connection ID already exists, closing old connection", "clientID", client.ID)
				existing.close()
				if existing.Conn != nil {
					existing.Conn.Close()
				}
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.InfoWith("connection opened", "clientID", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.clients[client.ID]
			if ok && current == client {
				client.close()
				delete(h.clients, client.ID)
			}
			h.mu.Unlock()
			if ok && current == client {
				h.dropPresence(client)
				log.InfoWith("connection closed", "clientID", client.ID)
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-h.done:
			return
		}
	}
}

// Stop terminates the run loop and closes every connection
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.close()
		if client.Conn != nil {
			client.Conn.Close()
		}
		delete(h.clients, id)
	}
}

// Connect hands a new connection to the run loop and starts its pumps
func (h *Hub) Connect(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		if client.Conn != nil {
			client.Conn.Close()
		}
		return
	}
	go h.readPump(client)
	go h.writePump(client)
}

// Disconnect hands a closing connection to the run loop
func (h *Hub) Disconnect(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// dropPresence removes the disconnecting connection's presence record
// and room memberships, announcing the new user list when a record
// actually existed.
func (h *Hub) dropPresence(client *Client) {
	removed, usernames := h.tracker.Remove(client.ID)
	h.tracker.LeaveRooms(client.ID)
	if removed == nil {
		return
	}

	h.announceUsers(usernames)

	if h.store != nil {
		username := removed.Username
		go func() {
			if err := h.store.SetStatus(username, "offline"); err != nil {
				logger.Get().WarnWith("failed to mark user offline in roster", "username", username, "error", err)
			}
		}()
	}
}

// Broadcast queues an event for fan-out. Never blocks the caller; the
// event is dropped when the hub queue is full or the hub has stopped.
func (h *Hub) Broadcast(ev *protocol.Event, scope Scope, senderID, room string) {
	msg := &outbound{event: ev, scope: scope, sender: senderID, room: room}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		logger.Get().Warn("broadcast queue full, dropping event")
	}
}

// SendTo queues an event for a single connection
func (h *Hub) SendTo(connID string, ev *protocol.Event) error {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}
	client.queue(ev)
	return nil
}

// fanOut delivers one broadcast to its resolved targets
func (h *Hub) fanOut(msg *outbound) {
	h.mu.RLock()
	targets := resolveTargets(msg, h.clients, h.tracker)
	h.mu.RUnlock()

	for _, client := range targets {
		client.queue(msg.event)
	}
}

// resolveTargets maps a scope onto the set of live connections it
// reaches. Pure with respect to the inputs; room members that have no
// live connection are skipped.
func resolveTargets(msg *outbound, clients map[string]*Client, tracker *presence.Tracker) []*Client {
	switch msg.scope {
	case ScopeAll, ScopeAllExceptSender:
		targets := make([]*Client, 0, len(clients))
		for id, client := range clients {
			if msg.scope == ScopeAllExceptSender && id == msg.sender {
				continue
			}
			targets = append(targets, client)
		}
		return targets

	case ScopeRoom, ScopeRoomExceptSender:
		members := tracker.RoomMembers(msg.room)
		targets := make([]*Client, 0, len(members))
		for id := range members {
			if msg.scope == ScopeRoomExceptSender && id == msg.sender {
				continue
			}
			if client, ok := clients[id]; ok {
				targets = append(targets, client)
			}
		}
		return targets
	}
	return nil
}

// announceUsers broadcasts the current username list to everyone
func (h *Hub) announceUsers(usernames []string) {
	ev, err := protocol.NewEvent(protocol.EventConnectedUsers, usernames)
	if err != nil {
		logger.Get().ErrorWithErr("failed to encode user list", err)
		return
	}
	h.Broadcast(ev, ScopeAll, "", "")
}

// ClientCount returns the number of live connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// saveToRoster records a registration in the roster asynchronously
func (h *Hub) saveToRoster(record *presence.UserPresence) {
	if h.store == nil {
		return
	}
	user := &storage.UserRecord{
		Username:  record.Username,
		AvatarURL: record.ProfilePicture,
		Status:    record.Status,
		LastSeen:  time.Now(),
	}
	go func() {
		if err := h.store.SaveUser(user); err != nil {
			logger.Get().WarnWith("failed to save user to roster", "username", user.Username, "error", err)
		}
	}()
}
