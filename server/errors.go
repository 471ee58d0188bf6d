package server

import "errors"

var (
	// ErrClientNotFound is returned when no live connection matches an ID
	ErrClientNotFound = errors.New("client not found")

	// ErrNotRegistered is returned when a connection has no presence record
	ErrNotRegistered = errors.New("connection not registered")

	// ErrHubStopped is returned when an operation reaches a stopped hub
	ErrHubStopped = errors.New("hub stopped")
)
