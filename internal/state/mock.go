package state

import (
	"database/sql"
	"time"
)

// Mock is a test double for Manager.
type Mock struct {
	offline  bool
	deviceID string
	listens  []PendingListen
	nextID   int64
	session  *LastfmSession
	closed   bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{deviceID: "test-device"}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) OfflineMode() (bool, error) { return m.offline, nil }

func (m *Mock) SetOfflineMode(enabled bool) error {
	m.offline = enabled
	return nil
}

func (m *Mock) DeviceID() (string, error) { return m.deviceID, nil }

func (m *Mock) AddPendingListen(l PendingListen) error {
	m.nextID++
	l.ID = m.nextID
	l.CreatedAt = time.Now()
	m.listens = append(m.listens, l)
	return nil
}

func (m *Mock) PendingListens() ([]PendingListen, error) {
	out := make([]PendingListen, len(m.listens))
	copy(out, m.listens)
	return out, nil
}

func (m *Mock) PendingListenCount() (int, error) { return len(m.listens), nil }

func (m *Mock) DeletePendingListen(id int64) error {
	for i, l := range m.listens {
		if l.ID == id {
			m.listens = append(m.listens[:i], m.listens[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mock) UpdatePendingListenAttempt(id int64, errMsg string) error {
	for i := range m.listens {
		if m.listens[i].ID == id {
			m.listens[i].Attempts++
			m.listens[i].LastError = errMsg
			break
		}
	}
	return nil
}

func (m *Mock) DeleteOldPendingListens(_ time.Duration) error { return nil }

func (m *Mock) GetLastfmSession() (*LastfmSession, error) { return m.session, nil }

func (m *Mock) SaveLastfmSession(username, sessionKey string) error {
	m.session = &LastfmSession{Username: username, SessionKey: sessionKey, LinkedAt: time.Now()}
	return nil
}

func (m *Mock) DeleteLastfmSession() error {
	m.session = nil
	return nil
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) IsClosed() bool { return m.closed }

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
