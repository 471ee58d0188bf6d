package storage

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store using a MySQL backend.
// The config database path is used as the DSN.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed roster store
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	s := &MySQLStore{db: db}
	if err := s.initDB(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(191) PRIMARY KEY,
			avatar_url TEXT,
			status VARCHAR(32) DEFAULT 'offline',
			last_seen DATETIME,
			first_seen DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_users_last_seen (last_seen),
			INDEX idx_users_status (status)
		)
	`)
	return err
}

// SaveUser inserts or refreshes a roster row
func (s *MySQLStore) SaveUser(user *UserRecord) error {
	now := time.Now()
	lastSeen := user.LastSeen
	if lastSeen.IsZero() {
		lastSeen = now
	}

	_, err := s.db.Exec(`
		INSERT INTO users (username, avatar_url, status, last_seen, first_seen)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			avatar_url = IF(VALUES(avatar_url) != '', VALUES(avatar_url), avatar_url),
			status = VALUES(status),
			last_seen = VALUES(last_seen)
	`, user.Username, user.AvatarURL, user.Status, lastSeen, now)
	return err
}

// GetUser returns the roster row for a username
func (s *MySQLStore) GetUser(username string) (*UserRecord, error) {
	row := s.db.QueryRow(`
		SELECT username, avatar_url, status, last_seen, first_seen
		FROM users WHERE username = ?
	`, username)
	return scanUser(row)
}

// GetAllUsers returns the roster ordered by most recently seen
func (s *MySQLStore) GetAllUsers() ([]*UserRecord, error) {
	rows, err := s.db.Query(`
		SELECT username, avatar_url, status, last_seen, first_seen
		FROM users ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*UserRecord
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetStatus updates the status and last-seen timestamp for a username
func (s *MySQLStore) SetStatus(username, status string) error {
	result, err := s.db.Exec(`
		UPDATE users SET status = ?, last_seen = ? WHERE username = ?
	`, status, time.Now(), username)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkStaleOffline flips users not seen within the timeout to offline
func (s *MySQLStore) MarkStaleOffline(timeout time.Duration) error {
	cutoff := time.Now().Add(-timeout)
	_, err := s.db.Exec(`
		UPDATE users SET status = 'offline'
		WHERE status != 'offline' AND last_seen < ?
	`, cutoff)
	return err
}

// GetStats returns total, online and offline counts
func (s *MySQLStore) GetStats() (total, online, offline int, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status != 'offline' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'offline' THEN 1 ELSE 0 END), 0)
		FROM users
	`).Scan(&total, &online, &offline)
	return total, online, offline, err
}

// Close releases the underlying database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
