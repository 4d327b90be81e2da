package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	// SQLiteFileName is the database file created inside the cache directory
	SQLiteFileName = "vectors.db"
)

// Open returns the named backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendSQLite:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
