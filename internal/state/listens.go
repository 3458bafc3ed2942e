package state

import (
	"database/sql"
	"time"

	dbutil "github.com/cmarret/tideline/internal/db"
)

// PendingListen is a finished track whose submission to the listen
// services is deferred, typically because the network was unavailable.
type PendingListen struct {
	ID            int64
	TrackID       string
	Artist        string
	Track         string
	Album         string
	DurationSecs  int
	ListenedAt    time.Time
	MBRecordingID string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
}

// AddPendingListen queues a listen for later submission. Attempts and
// LastError carry over so a listen that already failed a live submit
// keeps its history.
func (m *Manager) AddPendingListen(l PendingListen) error {
	now := time.Now().Unix()
	_, err := m.db.Exec(`
		INSERT INTO pending_listens
		(track_id, artist, track, album, duration_seconds, listened_at, mb_recording_id, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.TrackID, l.Artist, l.Track, l.Album, l.DurationSecs, l.ListenedAt.Unix(), l.MBRecordingID, l.Attempts, l.LastError, now)
	return err
}

// PendingListens returns all pending listens, oldest first.
func (m *Manager) PendingListens() ([]PendingListen, error) {
	rows, err := m.db.Query(`
		SELECT id, track_id, artist, track, album, duration_seconds, listened_at, mb_recording_id, attempts, last_error, created_at
		FROM pending_listens
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listens []PendingListen
	for rows.Next() {
		var l PendingListen
		var trackID, album, mbRecordingID, lastError sql.NullString
		var listenedAt, createdAt int64

		err := rows.Scan(
			&l.ID, &trackID, &l.Artist, &l.Track, &album, &l.DurationSecs,
			&listenedAt, &mbRecordingID, &l.Attempts, &lastError, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		l.TrackID = dbutil.NullStringValue(trackID)
		l.Album = dbutil.NullStringValue(album)
		l.MBRecordingID = dbutil.NullStringValue(mbRecordingID)
		l.LastError = dbutil.NullStringValue(lastError)
		l.ListenedAt = time.Unix(listenedAt, 0)
		l.CreatedAt = time.Unix(createdAt, 0)

		listens = append(listens, l)
	}

	return listens, rows.Err()
}

// PendingListenCount returns the number of queued listens.
func (m *Manager) PendingListenCount() (int, error) {
	var count int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM pending_listens`).Scan(&count)
	return count, err
}

// DeletePendingListen removes a successfully submitted listen.
func (m *Manager) DeletePendingListen(id int64) error {
	_, err := m.db.Exec(`DELETE FROM pending_listens WHERE id = ?`, id)
	return err
}

// UpdatePendingListenAttempt increments the attempt count and records
// the last error message.
func (m *Manager) UpdatePendingListenAttempt(id int64, errMsg string) error {
	_, err := m.db.Exec(`
		UPDATE pending_listens
		SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`, errMsg, id)
	return err
}

// DeleteOldPendingListens removes pending listens older than maxAge.
func (m *Manager) DeleteOldPendingListens(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	_, err := m.db.Exec(`DELETE FROM pending_listens WHERE created_at < ?`, cutoff)
	return err
}
