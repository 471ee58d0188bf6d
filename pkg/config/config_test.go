package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests loading default config
func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config is nil")
	}
}

// TestLoadConfigDefaults tests default values are set
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Address == "" {
		t.Error("Address should not be empty")
	}
	if cfg.Uploads.Dir == "" {
		t.Error("Uploads dir should not be empty")
	}
	if cfg.WebSocket.SendBuffer < 1 {
		t.Error("WebSocket send buffer should be positive")
	}
	if cfg.Rooms.WelcomeText == "" {
		t.Error("Room welcome text should not be empty")
	}
}

// TestLoadConfigFromFile tests yaml file values override defaults
func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("address: \":9999\"\nuploads:\n  dir: ./pics\n  url_prefix: /pics\n  max_upload_mb: 2\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Address != ":9999" {
		t.Errorf("Expected address :9999, got %s", cfg.Address)
	}
	if cfg.Uploads.URLPrefix != "/pics" {
		t.Errorf("Expected url prefix /pics, got %s", cfg.Uploads.URLPrefix)
	}
	// Untouched sections keep defaults
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Expected default database type sqlite, got %s", cfg.Database.Type)
	}
}

// TestLoadConfigEnvOverride tests environment variables win over file values
func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CHATRELAY_ADDRESS", ":7777")
	t.Setenv("CHATRELAY_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Address != ":7777" {
		t.Errorf("Expected address :7777, got %s", cfg.Address)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

// TestValidateRejectsBadValues tests validation failures
func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Uploads.URLPrefix = "uploads"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for url_prefix without leading slash")
	}

	cfg = DefaultConfig()
	cfg.Database.Type = "mongodb"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unsupported database type")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for invalid log level")
	}
}

// TestConfigString tests String() method
func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.String() == "" {
		t.Error("String() should not return empty string")
	}
}
