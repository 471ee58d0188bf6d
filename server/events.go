package server

import (
	"chatrelay/pkg/logger"
	"chatrelay/pkg/protocol"
)

// handleEvent dispatches one inbound event. Malformed payloads are
// dropped and logged; they never take the connection down.
func (h *Hub) handleEvent(client *Client, ev *protocol.Event) {
	log := logger.Get()
	defer func() {
		if r := recover(); r != nil {
			log.ErrorWith("panic recovered in handleEvent", "clientID", client.ID, "panic", r)
		}
	}()

	switch ev.Canonical() {
	case protocol.EventRegister:
		h.handleRegister(client, ev)

	case protocol.EventMessage:
		h.Broadcast(ev, ScopeAllExceptSender, client.ID, "")

	case protocol.EventTyping:
		var payload protocol.TypingPayload
		if err := parseAndValidate(ev, &payload); err != nil {
			log.WarnWith("dropping typing event", "clientID", client.ID, "error", err)
			return
		}
		h.Broadcast(ev, ScopeAllExceptSender, client.ID, "")

	case protocol.EventUpdateStatus:
		h.handleUpdateStatus(client, ev)

	case protocol.EventJoinRoom:
		h.handleJoinRoom(client, ev)

	case protocol.EventRoomMessage:
		h.handleRoomMessage(client, ev)

	default:
		log.DebugWith("ignoring unknown event", "clientID", client.ID, "event", string(ev.Event))
	}
}

func (h *Hub) handleRegister(client *Client, ev *protocol.Event) {
	log := logger.Get()
	var payload protocol.RegisterPayload
	if err := parseAndValidate(ev, &payload); err != nil {
		log.WarnWith("dropping register event", "clientID", client.ID, "error", err)
		return
	}

	record, usernames := h.tracker.Register(client.ID, payload.Username, payload.ProfilePicture, payload.Status)
	log.InfoWith("user registered", "clientID", client.ID, "username", record.Username)

	h.saveToRoster(record)
	h.announceUsers(usernames)

	ack, err := protocol.NewEvent(protocol.EventRegistrationSuccess,
		protocol.RegistrationSuccessPayload{ConnectionID: client.ID})
	if err != nil {
		log.ErrorWithErr("failed to encode registration ack", err)
		return
	}
	client.queue(ack)
}

func (h *Hub) handleUpdateStatus(client *Client, ev *protocol.Event) {
	log := logger.Get()
	var payload protocol.UpdateStatusPayload
	if err := parseAndValidate(ev, &payload); err != nil {
		log.WarnWith("dropping status update", "clientID", client.ID, "error", err)
		return
	}

	// Unregistered connections are silently ignored
	if !h.tracker.UpdateStatus(client.ID, payload.Status) {
		log.DebugWith("status update from unregistered connection", "clientID", client.ID)
		return
	}

	if h.store != nil {
		if record, ok := h.tracker.Lookup(client.ID); ok {
			username := record.Username
			status := payload.Status
			go func() {
				if err := h.store.SetStatus(username, status); err != nil {
					log.WarnWith("failed to update roster status", "username", username, "error", err)
				}
			}()
		}
	}
}

func (h *Hub) handleJoinRoom(client *Client, ev *protocol.Event) {
	log := logger.Get()
	var payload protocol.JoinRoomPayload
	if err := parseAndValidate(ev, &payload); err != nil {
		log.WarnWith("dropping join event", "clientID", client.ID, "error", err)
		return
	}

	h.tracker.JoinRoom(client.ID, payload.RoomName)
	log.InfoWith("connection joined room", "clientID", client.ID, "room", payload.RoomName)

	// Welcome goes to the joining connection only
	welcome, err := protocol.NewEvent(protocol.EventConnectToRoom,
		protocol.ConnectToRoomPayload{WelcomeText: h.welcome})
	if err != nil {
		log.ErrorWithErr("failed to encode room welcome", err)
		return
	}
	client.queue(welcome)
}

func (h *Hub) handleRoomMessage(client *Client, ev *protocol.Event) {
	var payload protocol.RoomMessagePayload
	if err := parseAndValidate(ev, &payload); err != nil {
		logger.Get().WarnWith("dropping room message", "clientID", client.ID, "error", err)
		return
	}
	h.Broadcast(ev, ScopeRoomExceptSender, client.ID, payload.RoomName)
}

// parseAndValidate decodes the payload and checks its required fields
func parseAndValidate(ev *protocol.Event, v interface{}) error {
	if err := ev.ParsePayload(v); err != nil {
		return err
	}
	return protocol.ValidatePayload(v)
}
