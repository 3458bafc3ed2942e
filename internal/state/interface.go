package state

import (
	"database/sql"
	"time"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB
	OfflineMode() (bool, error)
	SetOfflineMode(enabled bool) error
	DeviceID() (string, error)
	AddPendingListen(l PendingListen) error
	PendingListens() ([]PendingListen, error)
	PendingListenCount() (int, error)
	DeletePendingListen(id int64) error
	UpdatePendingListenAttempt(id int64, errMsg string) error
	DeleteOldPendingListens(maxAge time.Duration) error
	GetLastfmSession() (*LastfmSession, error)
	SaveLastfmSession(username, sessionKey string) error
	DeleteLastfmSession() error
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
