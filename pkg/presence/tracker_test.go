package presence

import (
	"reflect"
	"testing"
)

// TestRegisterAppends tests that registration appends records in order
func TestRegisterAppends(t *testing.T) {
	tr := NewTracker()

	record, usernames := tr.Register("c1", "alice", "", "")
	if record.Status != DefaultStatus {
		t.Errorf("Expected default status %q, got %q", DefaultStatus, record.Status)
	}
	if !reflect.DeepEqual(usernames, []string{"alice"}) {
		t.Errorf("Expected snapshot [alice], got %v", usernames)
	}

	_, usernames = tr.Register("c2", "bob", "http://x/b.png", "away")
	if !reflect.DeepEqual(usernames, []string{"alice", "bob"}) {
		t.Errorf("Expected snapshot [alice bob], got %v", usernames)
	}
}

// TestRegisterDuplicates tests that re-registering appends, not replaces
func TestRegisterDuplicates(t *testing.T) {
	tr := NewTracker()
	tr.Register("c1", "alice", "", "")
	tr.Register("c1", "alice", "", "")

	if got := tr.Count(); got != 2 {
		t.Errorf("Expected 2 records after duplicate register, got %d", got)
	}
	if got := tr.Usernames(); !reflect.DeepEqual(got, []string{"alice", "alice"}) {
		t.Errorf("Expected duplicate usernames preserved, got %v", got)
	}
}

// TestUpdateStatus tests status changes and the unregistered case
func TestUpdateStatus(t *testing.T) {
	tr := NewTracker()

	if tr.UpdateStatus("ghost", "busy") {
		t.Error("UpdateStatus should return false for unknown connection")
	}

	tr.Register("c1", "alice", "", "")
	if !tr.UpdateStatus("c1", "busy") {
		t.Error("UpdateStatus should return true for registered connection")
	}
	record, ok := tr.Lookup("c1")
	if !ok || record.Status != "busy" {
		t.Errorf("Expected status busy, got %+v", record)
	}
}

// TestRemove tests removal and the post-removal snapshot
func TestRemove(t *testing.T) {
	tr := NewTracker()
	tr.Register("c1", "alice", "", "")
	tr.Register("c2", "bob", "", "")

	removed, usernames := tr.Remove("c1")
	if removed == nil || removed.Username != "alice" {
		t.Fatalf("Expected to remove alice, got %+v", removed)
	}
	if !reflect.DeepEqual(usernames, []string{"bob"}) {
		t.Errorf("Expected snapshot [bob], got %v", usernames)
	}

	if removed, _ := tr.Remove("c1"); removed != nil {
		t.Errorf("Expected nil for already-removed connection, got %+v", removed)
	}
}

// TestJoinRoomIdempotent tests that joining twice has no extra effect
func TestJoinRoomIdempotent(t *testing.T) {
	tr := NewTracker()
	tr.JoinRoom("c1", "general")
	tr.JoinRoom("c1", "general")
	tr.JoinRoom("c2", "general")

	members := tr.RoomMembers("general")
	if len(members) != 2 {
		t.Errorf("Expected 2 members, got %d", len(members))
	}
	if _, ok := members["c1"]; !ok {
		t.Error("Expected c1 in room")
	}
}

// TestLeaveRooms tests that a disconnecting connection leaves every room
func TestLeaveRooms(t *testing.T) {
	tr := NewTracker()
	tr.JoinRoom("c1", "general")
	tr.JoinRoom("c1", "random")
	tr.JoinRoom("c2", "general")

	tr.LeaveRooms("c1")

	if members := tr.RoomMembers("general"); len(members) != 1 {
		t.Errorf("Expected 1 member left in general, got %d", len(members))
	}
	if members := tr.RoomMembers("random"); len(members) != 0 {
		t.Errorf("Expected random to be empty, got %d members", len(members))
	}
}

// TestUsernameNormalization tests that registered names are trimmed
func TestUsernameNormalization(t *testing.T) {
	tr := NewTracker()
	record, _ := tr.Register("c1", "  alice ", "", "")
	if record.Username != "alice" {
		t.Errorf("Expected normalized username alice, got %q", record.Username)
	}
}

// TestConcurrentAccess tests that mixed operations race cleanly
func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 100; i++ {
			tr.Register("c1", "alice", "", "")
			tr.JoinRoom("c1", "general")
			tr.Remove("c1")
			tr.LeaveRooms("c1")
		}
		close(done)
	}()

	for i := 0; i < 100; i++ {
		tr.Usernames()
		tr.RoomMembers("general")
		tr.Count()
	}
	<-done
}
