package state

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Setting keys.
const (
	keyOfflineMode = "offline_mode"
	keyDeviceID    = "device_id"
)

func (m *Manager) getSetting(key string) (string, error) {
	var value string
	err := m.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (m *Manager) setSetting(key, value string) error {
	_, err := m.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// OfflineMode returns the persisted offline preference.
func (m *Manager) OfflineMode() (bool, error) {
	v, err := m.getSetting(keyOfflineMode)
	return v == "1", err
}

// SetOfflineMode persists the offline preference.
func (m *Manager) SetOfflineMode(enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return m.setSetting(keyOfflineMode, v)
}

// DeviceID returns the stable device identifier reported to the server,
// generating one on first call.
func (m *Manager) DeviceID() (string, error) {
	id, err := m.getSetting(keyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := m.setSetting(keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}
