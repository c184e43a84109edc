package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection holding persisted metric cycles.
type DB struct {
	*sql.DB
}

// startupPragmas are applied to every freshly opened database. WAL mode
// lets the monitor read while the runner writes; the busy timeout covers
// the remaining writer collisions.
var startupPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens (or creates) the SQLite database at path and applies the
// startup PRAGMAs. It does not touch the schema; migrations manage that.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range startupPragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}
