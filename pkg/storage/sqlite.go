package storage

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using a SQLite backend
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed roster store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		avatar_url TEXT,
		status TEXT DEFAULT 'offline',
		last_seen DATETIME,
		first_seen DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen DESC);
	CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveUser inserts or refreshes a roster row. The first-seen timestamp
// is preserved across re-registrations.
func (s *SQLiteStore) SaveUser(user *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	lastSeen := user.LastSeen
	if lastSeen.IsZero() {
		lastSeen = now
	}

	_, err := s.db.Exec(`
		INSERT INTO users (username, avatar_url, status, last_seen, first_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE avatar_url END,
			status = excluded.status,
			last_seen = excluded.last_seen,
			updated_at = CURRENT_TIMESTAMP
	`, user.Username, user.AvatarURL, user.Status, lastSeen, now)
	return err
}

// GetUser returns the roster row for a username
func (s *SQLiteStore) GetUser(username string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT username, avatar_url, status, last_seen, first_seen
		FROM users WHERE username = ?
	`, username)

	return scanUser(row)
}

// GetAllUsers returns the roster ordered by most recently seen
func (s *SQLiteStore) GetAllUsers() ([]*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteStore) SetStatus(username, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE users SET status = ?, last_seen = ?, updated_at = CURRENT_TIMESTAMP
		WHERE username = ?
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
func (s *SQLiteStore) MarkStaleOffline(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	_, err := s.db.Exec(`
		UPDATE users SET status = 'offline', updated_at = CURRENT_TIMESTAMP
		WHERE status != 'offline' AND last_seen < ?
	`, cutoff)
	return err
}

// GetStats returns total, online and offline counts
func (s *SQLiteStore) GetStats() (total, online, offline int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status != 'offline' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'offline' THEN 1 ELSE 0 END), 0)
		FROM users
	`).Scan(&total, &online, &offline)
	return total, online, offline, err
}

// Close releases the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*UserRecord, error) {
	var user UserRecord
	var avatar sql.NullString
	var lastSeen, firstSeen sql.NullTime
	if err := row.Scan(&user.Username, &avatar, &user.Status, &lastSeen, &firstSeen); err != nil {
		return nil, err
	}
	user.AvatarURL = avatar.String
	user.LastSeen = lastSeen.Time
	user.FirstSeen = firstSeen.Time
	return &user, nil
}
