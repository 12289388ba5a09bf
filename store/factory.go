package store

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"   - JSON snapshot at dataDir/users.json (default)
//	"sqlite" - SQLite database at dataDir/users.db
//	"memory" - In-memory (ephemeral, for testing)
func New(backend, dataDir string, log *zap.Logger) (Store, error) {
	switch backend {
	case "json", "":
		return NewJSONFileStore(filepath.Join(dataDir, "users.json"), log)
	case "sqlite":
		return NewSqliteStore(filepath.Join(dataDir, "users.db"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, memory)", backend)
	}
}
