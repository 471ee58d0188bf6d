package storage

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "roster.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	if store == nil {
		t.Fatal("Store should not be nil")
	}
}

func TestSaveAndGetUser(t *testing.T) {
	store := newTestStore(t)

	user := &UserRecord{
		Username:  "alice",
		AvatarURL: "http://localhost:4000/uploads/1-a.png",
		Status:    "online",
		LastSeen:  time.Now(),
	}
	if err := store.SaveUser(user); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}

	retrieved, err := store.GetUser("alice")
	if err != nil {
		t.Fatalf("Failed to retrieve user: %v", err)
	}
	if retrieved.Username != "alice" {
		t.Errorf("Expected username 'alice', got '%s'", retrieved.Username)
	}
	if retrieved.Status != "online" {
		t.Errorf("Expected status 'online', got '%s'", retrieved.Status)
	}
	if retrieved.AvatarURL != user.AvatarURL {
		t.Errorf("Expected avatar %s, got %s", user.AvatarURL, retrieved.AvatarURL)
	}
}

func TestSaveUserKeepsAvatarOnEmptyUpdate(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveUser(&UserRecord{Username: "bob", AvatarURL: "http://x/b.png", Status: "online"}); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}
	// Re-registration without a picture must not erase the stored one
	if err := store.SaveUser(&UserRecord{Username: "bob", Status: "away"}); err != nil {
		t.Fatalf("Failed to re-save user: %v", err)
	}

	retrieved, err := store.GetUser("bob")
	if err != nil {
		t.Fatalf("Failed to retrieve user: %v", err)
	}
	if retrieved.AvatarURL != "http://x/b.png" {
		t.Errorf("Avatar should survive empty update, got '%s'", retrieved.AvatarURL)
	}
	if retrieved.Status != "away" {
		t.Errorf("Expected status 'away', got '%s'", retrieved.Status)
	}
}

func TestSetStatus(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetStatus("ghost", "online"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows for unknown user, got %v", err)
	}

	if err := store.SaveUser(&UserRecord{Username: "alice", Status: "online"}); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}
	if err := store.SetStatus("alice", "offline"); err != nil {
		t.Fatalf("Failed to set status: %v", err)
	}

	retrieved, err := store.GetUser("alice")
	if err != nil {
		t.Fatalf("Failed to retrieve user: %v", err)
	}
	if retrieved.Status != "offline" {
		t.Errorf("Expected status 'offline', got '%s'", retrieved.Status)
	}
}

func TestMarkStaleOffline(t *testing.T) {
	store := newTestStore(t)

	stale := &UserRecord{Username: "stale", Status: "online", LastSeen: time.Now().Add(-time.Hour)}
	fresh := &UserRecord{Username: "fresh", Status: "online", LastSeen: time.Now()}
	for _, u := range []*UserRecord{stale, fresh} {
		if err := store.SaveUser(u); err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}
	}

	if err := store.MarkStaleOffline(10 * time.Minute); err != nil {
		t.Fatalf("Failed to mark stale users: %v", err)
	}

	got, err := store.GetUser("stale")
	if err != nil {
		t.Fatalf("Failed to retrieve user: %v", err)
	}
	if got.Status != "offline" {
		t.Errorf("Stale user should be offline, got '%s'", got.Status)
	}

	got, err = store.GetUser("fresh")
	if err != nil {
		t.Fatalf("Failed to retrieve user: %v", err)
	}
	if got.Status != "online" {
		t.Errorf("Fresh user should stay online, got '%s'", got.Status)
	}
}

func TestGetAllUsersAndStats(t *testing.T) {
	store := newTestStore(t)

	users := []*UserRecord{
		{Username: "alice", Status: "online", LastSeen: time.Now()},
		{Username: "bob", Status: "offline", LastSeen: time.Now().Add(-time.Minute)},
	}
	for _, u := range users {
		if err := store.SaveUser(u); err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}
	}

	all, err := store.GetAllUsers()
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(all))
	}
	if all[0].Username != "alice" {
		t.Errorf("Expected most recently seen first, got '%s'", all[0].Username)
	}

	total, online, offline, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if total != 2 || online != 1 || offline != 1 {
		t.Errorf("Expected stats 2/1/1, got %d/%d/%d", total, online, offline)
	}
}
