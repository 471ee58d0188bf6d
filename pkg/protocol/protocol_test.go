package protocol

import (
	"encoding/json"
	"testing"
)

// TestNewEventRoundTrip tests envelope marshal/parse
func TestNewEventRoundTrip(t *testing.T) {
	ev, err := NewEvent(EventRegister, RegisterPayload{Username: "alice", Status: "online"})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if decoded.Event != EventRegister {
		t.Errorf("Expected event %q, got %q", EventRegister, decoded.Event)
	}

	var payload RegisterPayload
	if err := decoded.ParsePayload(&payload); err != nil {
		t.Fatalf("Failed to parse payload: %v", err)
	}
	if payload.Username != "alice" {
		t.Errorf("Expected username alice, got %s", payload.Username)
	}
}

// TestCanonicalLegacyNames tests legacy event name mapping
func TestCanonicalLegacyNames(t *testing.T) {
	cases := map[EventName]EventName{
		EventJoinRoomLegacy:    EventJoinRoom,
		EventRoomMessageLegacy: EventRoomMessage,
		EventMessage:           EventMessage,
		EventTyping:            EventTyping,
	}

	for in, want := range cases {
		ev := &Event{Event: in}
		if got := ev.Canonical(); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestValidatePayload tests required-field enforcement
func TestValidatePayload(t *testing.T) {
	if err := ValidatePayload(RegisterPayload{Username: "bob"}); err != nil {
		t.Errorf("Valid register payload rejected: %v", err)
	}
	if err := ValidatePayload(RegisterPayload{}); err == nil {
		t.Error("Register payload without username should fail validation")
	}
	if err := ValidatePayload(JoinRoomPayload{}); err == nil {
		t.Error("Join payload without roomName should fail validation")
	}
	if err := ValidatePayload(RoomMessagePayload{RoomName: "r1"}); err != nil {
		t.Errorf("Room message with roomName only should validate: %v", err)
	}
}

// TestNormalizeUsername tests trimming and NFC normalization
func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  alice "); got != "alice" {
		t.Errorf("Expected trimmed username, got %q", got)
	}
	// e + combining acute accent normalizes to the precomposed form
	decomposed := "jose\u0301"
	composed := "jos\u00e9"
	if got := NormalizeUsername(decomposed); got != composed {
		t.Errorf("Expected NFC form %q, got %q", composed, got)
	}
}
