package storage

import (
	"fmt"

	"chatrelay/pkg/config"
)

// NewStore returns a concrete Store based on database configuration.
// For mysql, the configured path is used as the DSN. Type "none"
// disables the roster entirely and returns a nil Store.
func NewStore(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path)
	case "mysql":
		return NewMySQLStore(cfg.Path)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
