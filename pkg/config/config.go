package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ServerConfig represents relay server configuration
type ServerConfig struct {
	Address   string          `yaml:"address" envconfig:"ADDRESS"`
	BaseURL   string          `yaml:"base_url" envconfig:"BASE_URL"`
	TLS       TLSConfig       `yaml:"tls"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Database  DatabaseConfig  `yaml:"database"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"TLS_ENABLED"`
	CertFile string `yaml:"cert_file" envconfig:"TLS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" envconfig:"TLS_KEY_FILE"`
}

// UploadsConfig represents avatar upload settings
type UploadsConfig struct {
	Dir         string `yaml:"dir" envconfig:"UPLOADS_DIR"`
	URLPrefix   string `yaml:"url_prefix" envconfig:"UPLOADS_URL_PREFIX"`
	MaxUploadMB int64  `yaml:"max_upload_mb" envconfig:"UPLOADS_MAX_MB"`
}

// DatabaseConfig represents the user roster database settings.
// Path doubles as the DSN for the mysql backend.
type DatabaseConfig struct {
	Type         string        `yaml:"type" envconfig:"DB_TYPE"` // sqlite | mysql | none
	Path         string        `yaml:"path" envconfig:"DB_PATH"`
	OfflineAfter time.Duration `yaml:"offline_after" envconfig:"DB_OFFLINE_AFTER"`
}

// WebSocketConfig represents transport tuning knobs
type WebSocketConfig struct {
	ReadLimit    int64         `yaml:"read_limit" envconfig:"WS_READ_LIMIT"`
	SendBuffer   int           `yaml:"send_buffer" envconfig:"WS_SEND_BUFFER"`
	PingInterval time.Duration `yaml:"ping_interval" envconfig:"WS_PING_INTERVAL"`
	PongWait     time.Duration `yaml:"pong_wait" envconfig:"WS_PONG_WAIT"`
	WriteWait    time.Duration `yaml:"write_wait" envconfig:"WS_WRITE_WAIT"`
}

// RoomsConfig represents room behavior settings
type RoomsConfig struct {
	WelcomeText string `yaml:"welcome_text" envconfig:"ROOMS_WELCOME_TEXT"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":4000",
		BaseURL: "http://localhost:4000",
		TLS: TLSConfig{
			Enabled: false,
		},
		Uploads: UploadsConfig{
			Dir:         "./uploads",
			URLPrefix:   "/uploads",
			MaxUploadMB: 8,
		},
		Database: DatabaseConfig{
			Type:         "sqlite",
			Path:         "./roster.db",
			OfflineAfter: 2 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:    64 * 1024,
			SendBuffer:   256,
			PingInterval: 54 * time.Second,
			PongWait:     60 * time.Second,
			WriteWait:    10 * time.Second,
		},
		Rooms: RoomsConfig{
			WelcomeText: "Bienvenido a la sala",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// Precedence: defaults < yaml file < CHATRELAY_* environment variables.
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := envconfig.Process("chatrelay", config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads dir cannot be empty")
	}

	if !strings.HasPrefix(c.Uploads.URLPrefix, "/") {
		return fmt.Errorf("uploads url_prefix must start with /: %s", c.Uploads.URLPrefix)
	}

	if c.Uploads.MaxUploadMB < 1 {
		return fmt.Errorf("uploads max_upload_mb must be at least 1")
	}

	switch c.Database.Type {
	case "sqlite", "mysql", "none", "":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("websocket send_buffer must be at least 1")
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}
		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}
		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// UploadsPath returns the absolute uploads directory
func (c *ServerConfig) UploadsPath() string {
	if filepath.IsAbs(c.Uploads.Dir) {
		return c.Uploads.Dir
	}
	abs, err := filepath.Abs(c.Uploads.Dir)
	if err != nil {
		return c.Uploads.Dir
	}
	return abs
}

// String returns a string representation of the configuration (for logging)
func (c *ServerConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, Uploads: %s, DB: %s/%s, TLS: %v, LogLevel: %s}",
		c.Address, c.Uploads.Dir, c.Database.Type, c.Database.Path, c.TLS.Enabled, c.Logging.Level)
}
