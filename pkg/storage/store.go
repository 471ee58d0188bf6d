package storage

import "time"

// UserRecord is one roster row, keyed by username
type UserRecord struct {
	Username  string
	AvatarURL string
	Status    string
	LastSeen  time.Time
	FirstSeen time.Time
}

// Store defines the interface for roster persistence
type Store interface {
	// SaveUser inserts or refreshes a roster row
	SaveUser(user *UserRecord) error
	// GetUser returns the roster row for a username
	GetUser(username string) (*UserRecord, error)
	// GetAllUsers returns the roster ordered by most recently seen
	GetAllUsers() ([]*UserRecord, error)
	// SetStatus updates the status and last-seen timestamp for a username
	SetStatus(username, status string) error
	// MarkStaleOffline flips users not seen within the timeout to offline
	MarkStaleOffline(timeout time.Duration) error
	// GetStats returns total, online and offline counts
	GetStats() (total, online, offline int, err error)
	// Close releases the underlying database
	Close() error
}
