// Package presence tracks who is online and which rooms each connection
// has joined. The registry and the room index share one lock so every
// username snapshot is consistent with the mutation that produced it.
package presence

import (
	"sync"

	"chatrelay/pkg/protocol"

	"github.com/samber/lo"
)

// DefaultStatus is assigned when a registration carries no status
const DefaultStatus = "online"

// UserPresence is one registered presence record
type UserPresence struct {
	ConnectionID   string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Status         string `json:"status"`
}

// Tracker holds the presence registry and the room membership index
type Tracker struct {
	mu      sync.RWMutex
	records []*UserPresence
	rooms   map[string]map[string]struct{} // room -> connection IDs
	joined  map[string]map[string]struct{} // connection ID -> rooms
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Register appends a presence record and returns it together with the
// username snapshot taken under the same lock. Registering twice appends
// a second record rather than replacing the first.
func (t *Tracker) Register(connID, username, profilePicture, status string) (*UserPresence, []string) {
	if status == "" {
		status = DefaultStatus
	}
	record := &UserPresence{
		ConnectionID:   connID,
		Username:       protocol.NormalizeUsername(username),
		ProfilePicture: profilePicture,
		Status:         status,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, record)
	return record, t.usernamesLocked()
}

// UpdateStatus mutates the first record belonging to the connection.
// Returns false when the connection never registered.
func (t *Tracker) UpdateStatus(connID, status string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		if r.ConnectionID == connID {
			r.Status = status
			return true
		}
	}
	return false
}

// Remove deletes the first record belonging to the connection and returns
// it plus the post-removal username snapshot. Returns nil when the
// connection never registered.
func (t *Tracker) Remove(connID string) (*UserPresence, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.records {
		if r.ConnectionID == connID {
			t.records = append(t.records[:i], t.records[i+1:]...)
			return r, t.usernamesLocked()
		}
	}
	return nil, nil
}

// Usernames returns all registered usernames in registration order.
// Duplicates are possible when a connection registered more than once.
func (t *Tracker) Usernames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usernamesLocked()
}

func (t *Tracker) usernamesLocked() []string {
	return lo.Map(t.records, func(r *UserPresence, _ int) string {
		return r.Username
	})
}

// Lookup returns the first record belonging to the connection
func (t *Tracker) Lookup(connID string) (*UserPresence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.records {
		if r.ConnectionID == connID {
			return r, true
		}
	}
	return nil, false
}

// Count returns the number of presence records
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// JoinRoom adds the connection to the named room. Joining a room the
// connection is already in is a no-op.
func (t *Tracker) JoinRoom(connID, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[room] == nil {
		t.rooms[room] = make(map[string]struct{})
	}
	t.rooms[room][connID] = struct{}{}
	if t.joined[connID] == nil {
		t.joined[connID] = make(map[string]struct{})
	}
	t.joined[connID][room] = struct{}{}
}

// RoomMembers returns the connection IDs currently in the room
func (t *Tracker) RoomMembers(room string) map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := make(map[string]struct{}, len(t.rooms[room]))
	for id := range t.rooms[room] {
		members[id] = struct{}{}
	}
	return members
}

// LeaveRooms removes the connection from every room it joined.
// Empty rooms are dropped from the index.
func (t *Tracker) LeaveRooms(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for room := range t.joined[connID] {
		delete(t.rooms[room], connID)
		if len(t.rooms[room]) == 0 {
			delete(t.rooms, room)
		}
	}
	delete(t.joined, connID)
}
