// Package downloads tracks per-track download records: lifecycle
// status, byte progress and local file locations. Records live in the
// shared state database and survive restarts.
package downloads

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dbutil "github.com/cmarret/tideline/internal/db"
	"github.com/cmarret/tideline/internal/music"
)

// Status constants for download records. The lifecycle is
// queued -> downloading -> completed or failed; failed records return
// to queued only through Retry.
const (
	StatusQueued      = "queued"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

var (
	// ErrNotFound is returned when no record exists for a track.
	ErrNotFound = errors.New("download not found")
	// ErrExists is returned when queueing a track that is already tracked.
	ErrExists = errors.New("download already exists")
	// ErrInvalidTransition is returned when a status change would leave
	// the download lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Record tracks the download lifecycle of a single track.
type Record struct {
	Track           music.Track
	Status          string
	BytesDownloaded int64
	TotalBytes      int64
	LocalPath       string // set when completed
	ArtworkPath     string // album cover saved next to the audio file
	Error           string // failure reason for failed records
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Progress returns the byte progress as a percentage, 0 when the total
// size is unknown.
func (r *Record) Progress() float64 {
	if r.TotalBytes <= 0 {
		return 0
	}
	return float64(r.BytesDownloaded) / float64(r.TotalBytes) * 100
}

// Counts aggregates records per status.
type Counts struct {
	Queued         int
	Downloading    int
	Completed      int
	Failed         int
	CompletedBytes int64
}

// Total returns the number of records across all statuses.
func (c Counts) Total() int {
	return c.Queued + c.Downloading + c.Completed + c.Failed
}

// Store provides database operations for download records.
type Store struct {
	db *sql.DB
}

// New creates a Store over the shared state database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `track_id, name, artist, album, track_json, status,
	bytes_downloaded, total_bytes, local_path, artwork_path, error,
	created_at, updated_at`

// Queue inserts a new queued record for the track. Tracks already
// tracked in any status are rejected with ErrExists; failed records are
// re-queued via Retry instead.
func (s *Store) Queue(track music.Track, totalBytes int64) error {
	existing, err := s.Get(track.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrExists, track.ID)
	}

	trackJSON, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("marshal track: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.Exec(`
		INSERT INTO downloads (track_id, name, artist, album, track_json, status, bytes_downloaded, total_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`, track.ID, track.Name, track.Artist, track.Album, string(trackJSON), StatusQueued, totalBytes, now, now)
	return err
}

// Get returns the record for a track, or ErrNotFound.
func (s *Store) Get(trackID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT `+recordColumns+`
		FROM downloads
		WHERE track_id = ?
	`, trackID)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, trackID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns all records, newest first.
func (s *Store) List() ([]Record, error) {
	return s.queryRecords(`
		SELECT ` + recordColumns + `
		FROM downloads
		ORDER BY created_at DESC, track_id
	`)
}

// ListByStatus returns records in the given status, oldest first, so
// the transfer engine picks up queued work in submission order.
func (s *Store) ListByStatus(status string) ([]Record, error) {
	return s.queryRecords(`
		SELECT `+recordColumns+`
		FROM downloads
		WHERE status = ?
		ORDER BY created_at ASC, track_id
	`, status)
}

// Completed returns completed records ordered by artist, album and
// track name so grouped views come out in a stable order.
func (s *Store) Completed() ([]Record, error) {
	return s.queryRecords(`
		SELECT `+recordColumns+`
		FROM downloads
		WHERE status = ?
		ORDER BY artist COLLATE NOCASE, album COLLATE NOCASE, name COLLATE NOCASE
	`, StatusCompleted)
}

// CompletedTracks returns the track metadata of all completed records.
func (s *Store) CompletedTracks() ([]music.Track, error) {
	records, err := s.Completed()
	if err != nil {
		return nil, err
	}
	return recordTracks(records), nil
}

// CompletedByAlbumName returns completed records for an album as
// grouped offline: the UnknownAlbum name also matches records whose
// track carries no album at all.
func (s *Store) CompletedByAlbumName(name string) ([]Record, error) {
	if name == music.UnknownAlbum {
		return s.queryRecords(`
			SELECT `+recordColumns+`
			FROM downloads
			WHERE status = ? AND (album = ? OR album = '')
			ORDER BY name COLLATE NOCASE
		`, StatusCompleted, name)
	}
	return s.queryRecords(`
		SELECT `+recordColumns+`
		FROM downloads
		WHERE status = ? AND album = ?
		ORDER BY name COLLATE NOCASE
	`, StatusCompleted, name)
}

// CompletedByArtistName returns completed records for a display artist.
func (s *Store) CompletedByArtistName(name string) ([]Record, error) {
	return s.queryRecords(`
		SELECT `+recordColumns+`
		FROM downloads
		WHERE status = ? AND artist = ?
		ORDER BY album COLLATE NOCASE, name COLLATE NOCASE
	`, StatusCompleted, name)
}

// CompletedTracksByAlbumName returns the track metadata of an album's
// completed records.
func (s *Store) CompletedTracksByAlbumName(name string) ([]music.Track, error) {
	records, err := s.CompletedByAlbumName(name)
	if err != nil {
		return nil, err
	}
	return recordTracks(records), nil
}

// CompletedTracksByArtistName returns the track metadata of an artist's
// completed records.
func (s *Store) CompletedTracksByArtistName(name string) ([]music.Track, error) {
	records, err := s.CompletedByArtistName(name)
	if err != nil {
		return nil, err
	}
	return recordTracks(records), nil
}

func recordTracks(records []Record) []music.Track {
	tracks := make([]music.Track, len(records))
	for i, r := range records {
		tracks[i] = r.Track
	}
	return tracks
}

// IsDownloaded reports whether a completed record exists for the track.
func (s *Store) IsDownloaded(trackID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM downloads WHERE track_id = ? AND status = ?
	`, trackID, StatusCompleted).Scan(&count)
	return count > 0, err
}

// Counts returns per-status record counts and the byte total of
// completed downloads.
func (s *Store) Counts() (Counts, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*), COALESCE(SUM(total_bytes), 0)
		FROM downloads
		GROUP BY status
	`)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var count int
		var bytes int64
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return Counts{}, err
		}
		switch status {
		case StatusQueued:
			c.Queued = count
		case StatusDownloading:
			c.Downloading = count
		case StatusCompleted:
			c.Completed = count
			c.CompletedBytes = bytes
		case StatusFailed:
			c.Failed = count
		}
	}
	return c, rows.Err()
}

// MarkDownloading moves a queued record to downloading.
func (s *Store) MarkDownloading(trackID string) error {
	res, err := s.db.Exec(`
		UPDATE downloads
		SET status = ?, error = NULL, updated_at = ?
		WHERE track_id = ? AND status = ?
	`, StatusDownloading, time.Now().Unix(), trackID, StatusQueued)
	if err != nil {
		return err
	}
	return s.checkTransition(res, trackID, StatusDownloading)
}

// SetProgress updates byte progress while a record is downloading.
// Updates arriving after the record left the downloading status are
// ignored.
func (s *Store) SetProgress(trackID string, bytesDownloaded, totalBytes int64) error {
	_, err := s.db.Exec(`
		UPDATE downloads
		SET bytes_downloaded = ?, total_bytes = ?, updated_at = ?
		WHERE track_id = ? AND status = ?
	`, bytesDownloaded, totalBytes, time.Now().Unix(), trackID, StatusDownloading)
	return err
}

// MarkCompleted moves a downloading record to completed, recording the
// final file location and size.
func (s *Store) MarkCompleted(trackID, localPath string, size int64) error {
	res, err := s.db.Exec(`
		UPDATE downloads
		SET status = ?, local_path = ?, bytes_downloaded = ?, total_bytes = ?, error = NULL, updated_at = ?
		WHERE track_id = ? AND status = ?
	`, StatusCompleted, localPath, size, size, time.Now().Unix(), trackID, StatusDownloading)
	if err != nil {
		return err
	}
	return s.checkTransition(res, trackID, StatusCompleted)
}

// MarkFailed moves a queued or downloading record to failed with the
// given reason.
func (s *Store) MarkFailed(trackID, reason string) error {
	res, err := s.db.Exec(`
		UPDATE downloads
		SET status = ?, error = ?, updated_at = ?
		WHERE track_id = ? AND status IN (?, ?)
	`, StatusFailed, reason, time.Now().Unix(), trackID, StatusQueued, StatusDownloading)
	if err != nil {
		return err
	}
	return s.checkTransition(res, trackID, StatusFailed)
}

// Retry re-queues a failed record, clearing its error and progress.
func (s *Store) Retry(trackID string) error {
	res, err := s.db.Exec(`
		UPDATE downloads
		SET status = ?, error = NULL, bytes_downloaded = 0, updated_at = ?
		WHERE track_id = ? AND status = ?
	`, StatusQueued, time.Now().Unix(), trackID, StatusFailed)
	if err != nil {
		return err
	}
	return s.checkTransition(res, trackID, StatusQueued)
}

// Requeue replaces a record with a fresh queued one for the same track,
// dropping progress, file locations and any failure reason. Works from
// any status, unlike Retry.
func (s *Store) Requeue(track music.Track) error {
	trackJSON, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("marshal track: %w", err)
	}
	now := time.Now().Unix()
	return dbutil.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM downloads WHERE track_id = ?`, track.ID); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO downloads (track_id, name, artist, album, track_json, status, bytes_downloaded, total_bytes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		`, track.ID, track.Name, track.Artist, track.Album, string(trackJSON), StatusQueued, now, now)
		return err
	})
}

// SetArtwork records the local album cover path for a track. Artwork
// arrives after completion, so no status guard applies.
func (s *Store) SetArtwork(trackID, artworkPath string) error {
	_, err := s.db.Exec(`
		UPDATE downloads
		SET artwork_path = ?, updated_at = ?
		WHERE track_id = ?
	`, artworkPath, time.Now().Unix(), trackID)
	return err
}

// Delete removes a record. Deleting an unknown track is a no-op.
func (s *Store) Delete(trackID string) error {
	_, err := s.db.Exec(`DELETE FROM downloads WHERE track_id = ?`, trackID)
	return err
}

// ClearAll removes every record regardless of status.
func (s *Store) ClearAll() error {
	_, err := s.db.Exec(`DELETE FROM downloads`)
	return err
}

// ClearCompleted removes all completed records.
func (s *Store) ClearCompleted() error {
	_, err := s.db.Exec(`DELETE FROM downloads WHERE status = ?`, StatusCompleted)
	return err
}

// checkTransition reports why a status-guarded update matched no rows:
// either the record does not exist or its current status does not allow
// the requested transition.
func (s *Store) checkTransition(res sql.Result, trackID, to string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	rec, err := s.Get(trackID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, to)
}

func (s *Store) queryRecords(query string, args ...any) ([]Record, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var id, name, artist, album, trackJSON string
	var localPath, artworkPath, errMsg sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&id, &name, &artist, &album, &trackJSON, &r.Status,
		&r.BytesDownloaded, &r.TotalBytes, &localPath, &artworkPath, &errMsg,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	if err := json.Unmarshal([]byte(trackJSON), &r.Track); err != nil || r.Track.ID == "" {
		// Fall back to the denormalized columns rather than losing the record.
		r.Track = music.Track{ID: id, Name: name, Artist: artist, Album: album}
	}
	r.LocalPath = dbutil.NullStringValue(localPath)
	r.ArtworkPath = dbutil.NullStringValue(artworkPath)
	r.Error = dbutil.NullStringValue(errMsg)
	r.CreatedAt = time.Unix(createdAt, 0)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return r, nil
}
