// Package state persists device-local application state: settings such
// as the offline preference and device id, the pending listen queue,
// and the Last.fm session. The download store shares the same database
// through DB().
package state

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "tideline"
	dbFileName = "tideline.db"
)

type Manager struct {
	db *sql.DB
}

// Open opens the state database at the default XDG data location,
// creating it and its schema when missing.
func Open() (*Manager, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the state database at an explicit location.
func OpenPath(dbPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// DB exposes the underlying handle for stores sharing the database.
func (m *Manager) DB() *sql.DB {
	return m.db
}
