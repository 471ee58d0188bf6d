// Package protocol defines the wire format exchanged with chat clients.
//
// Every frame is an Event envelope carrying an event name and a raw JSON
// payload. Inbound event names include the legacy Spanish aliases kept for
// compatibility with the original browser client.
package protocol

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// EventName identifies the kind of event being sent
type EventName string

const (
	// Inbound events (client -> server)
	EventRegister     EventName = "register"
	EventMessage      EventName = "message"
	EventTyping       EventName = "typing"
	EventUpdateStatus EventName = "updateStatus"
	EventJoinRoom     EventName = "joinRoom"
	EventRoomMessage  EventName = "messageInRoom"

	// Legacy aliases accepted for the room events
	EventJoinRoomLegacy    EventName = "entrarChat"
	EventRoomMessageLegacy EventName = "mensajeEnSala"

	// Outbound events (server -> client)
	EventRegistrationSuccess  EventName = "registrationSuccess"
	EventRegistrationComplete EventName = "registrationComplete"
	EventConnectedUsers       EventName = "connectedUsersUpdate"
	EventConnectToRoom        EventName = "connectToRoom"
)

// Event is the envelope for all frames on the wire
type Event struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RegisterPayload carries a presence registration
type RegisterPayload struct {
	Username       string `json:"username" validate:"required"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Status         string `json:"status,omitempty"`
}

// TypingPayload announces that a user is typing
type TypingPayload struct {
	Username string `json:"username" validate:"required"`
}

// UpdateStatusPayload carries a presence status change
type UpdateStatusPayload struct {
	Status string `json:"status" validate:"required"`
}

// JoinRoomPayload asks to join a named room
type JoinRoomPayload struct {
	RoomName string `json:"roomName" validate:"required"`
}

// RoomMessagePayload carries a message scoped to a named room
type RoomMessagePayload struct {
	RoomName string `json:"roomName" validate:"required"`
	Nick     string `json:"nick,omitempty"`
	Msg      string `json:"msg,omitempty"`
}

// RegistrationSuccessPayload acknowledges a live registration back to its sender
type RegistrationSuccessPayload struct {
	ConnectionID string `json:"connectionId"`
}

// RegistrationCompletePayload acknowledges an HTTP-path registration
type RegistrationCompletePayload struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// ConnectToRoomPayload welcomes a connection into a room
type ConnectToRoomPayload struct {
	WelcomeText string `json:"welcomeText"`
}

// NewEvent creates an event with the given name and payload
func NewEvent(name EventName, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Event: name, Data: data}, nil
}

// ParsePayload unmarshals the event payload into the given value
func (e *Event) ParsePayload(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Canonical maps legacy event names onto their canonical form
func (e *Event) Canonical() EventName {
	switch e.Event {
	case EventJoinRoomLegacy:
		return EventJoinRoom
	case EventRoomMessageLegacy:
		return EventRoomMessage
	}
	return e.Event
}

// NormalizeUsername trims surrounding whitespace and applies NFC so that
// equal-looking usernames compare equal regardless of the client's encoder.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}
