// Package transfer moves track audio from the server into the local
// downloads directory. It drains queued download records with a bounded
// worker pool, streams each file with throttled progress updates,
// validates the bytes look like audio and records the outcome in the
// download store.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"

	"github.com/cmarret/tideline/internal/downloads"
	"github.com/cmarret/tideline/internal/music"
)

// coverFilename is the album artwork file saved next to the audio.
const coverFilename = "cover.jpg"

// Source is the remote side of a transfer. *jellyfin.Client satisfies it.
type Source interface {
	Download(ctx context.Context, trackID string) (io.ReadCloser, int64, error)
	ImageURL(itemID, tag string, maxWidth int) string
	ImageHeaders() map[string]string
}

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	MaxConcurrent   int
	ArtworkMaxWidth int
	Logger          *slog.Logger
}

// Event reports a record's lifecycle as bytes move. Status carries the
// downloads status the record entered; Error is set for failures.
type Event struct {
	TrackID string
	Status  string
	Bytes   int64
	Total   int64
	Error   string
}

// Engine downloads queued tracks and maintains their local files.
type Engine struct {
	store  *downloads.Store
	source Source
	dir    string
	opts   Options

	httpClient *http.Client

	subs   []*Subscription
	subsMu sync.Mutex
}

// New creates an engine writing under dir.
func New(store *downloads.Store, source Source, dir string, opts Options) *Engine {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.ArtworkMaxWidth <= 0 {
		opts.ArtworkMaxWidth = 300
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		store:  store,
		source: source,
		dir:    dir,
		opts:   opts,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Subscribe returns a subscription delivering transfer events.
func (e *Engine) Subscribe() *Subscription {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	sub := newSubscription()
	e.subs = append(e.subs, sub)
	return sub
}

// Close closes all subscriptions. Call it after Run has returned.
func (e *Engine) Close() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, sub := range e.subs {
		sub.close()
	}
	e.subs = nil
}

func (e *Engine) notify(ev Event) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, sub := range e.subs {
		sub.send(ev)
	}
}

// Run drains the queue with at most MaxConcurrent transfers in flight,
// returning once no queued records remain or ctx is canceled. Records
// queued while a batch is in flight are picked up by the next pass;
// each record is attempted at most once per Run.
func (e *Engine) Run(ctx context.Context) error {
	sem := make(chan struct{}, e.opts.MaxConcurrent)
	attempted := make(map[string]bool)

	for {
		queued, err := e.store.ListByStatus(downloads.StatusQueued)
		if err != nil {
			return fmt.Errorf("list queued downloads: %w", err)
		}
		var batch []downloads.Record
		for _, rec := range queued {
			if !attempted[rec.Track.ID] {
				attempted[rec.Track.ID] = true
				batch = append(batch, rec)
			}
		}
		if len(batch) == 0 {
			return ctx.Err()
		}

		var wg sync.WaitGroup
		for _, rec := range batch {
			if ctx.Err() != nil {
				break
			}
			select {
			case <-ctx.Done():
			case sem <- struct{}{}:
				wg.Add(1)
				go func(rec downloads.Record) {
					defer wg.Done()
					defer func() { <-sem }()
					e.process(ctx, rec)
				}(rec)
			}
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (e *Engine) process(ctx context.Context, rec downloads.Record) {
	track := rec.Track
	if err := e.store.MarkDownloading(track.ID); err != nil {
		// Someone else claimed the record between the list and now.
		e.opts.Logger.Warn("claim download", "track", track.ID, "error", err)
		return
	}
	e.notify(Event{TrackID: track.ID, Status: downloads.StatusDownloading, Total: rec.TotalBytes})

	path, size, err := e.download(ctx, track)
	if err != nil {
		reason := err.Error()
		if merr := e.store.MarkFailed(track.ID, reason); merr != nil {
			e.opts.Logger.Error("mark download failed", "track", track.ID, "error", merr)
		}
		e.opts.Logger.Warn("download failed", "track", track.ID, "name", track.Name, "error", err)
		e.notify(Event{TrackID: track.ID, Status: downloads.StatusFailed, Error: reason})
		return
	}

	if err := e.store.MarkCompleted(track.ID, path, size); err != nil {
		e.opts.Logger.Error("mark download completed", "track", track.ID, "error", err)
		return
	}
	e.opts.Logger.Info("download completed", "track", track.ID, "name", track.Name, "size", size)
	e.notify(Event{TrackID: track.ID, Status: downloads.StatusCompleted, Bytes: size, Total: size})

	// Artwork rides along after the audio; its failure never fails the
	// track.
	if err := e.fetchArtwork(ctx, track, filepath.Dir(path)); err != nil {
		e.opts.Logger.Warn("fetch artwork", "track", track.ID, "error", err)
	}
}

// download streams the track to a partial file, validates it and moves
// it into its final place. The partial file is removed on any failure.
func (e *Engine) download(ctx context.Context, track music.Track) (string, int64, error) {
	body, total, err := e.source.Download(ctx, track.ID)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	albumDir := e.albumDir(track)
	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create album directory: %w", err)
	}

	partPath := filepath.Join(albumDir, track.ID+".part")
	f, err := os.Create(partPath)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}

	written, err := e.copyWithProgress(ctx, f, body, track.ID, total)
	if err != nil {
		f.Close()
		os.Remove(partPath)
		return "", 0, err
	}

	ext, err := verify(f, written)
	if err != nil {
		f.Close()
		os.Remove(partPath)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(partPath)
		return "", 0, fmt.Errorf("close file: %w", err)
	}

	finalPath := filepath.Join(albumDir, trackFilename(track, ext))
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return "", 0, fmt.Errorf("move file into place: %w", err)
	}
	return finalPath, written, nil
}

// copyWithProgress copies the stream while recording progress once per
// whole percent, or once per mebibyte when the total is unknown.
func (e *Engine) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, trackID string, total int64) (int64, error) {
	buf := make([]byte, 128*1024)
	var written int64
	lastStep := -1

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("write file: %w", werr)
			}
			written += int64(n)
			if step := progressStep(written, total); step != lastStep {
				lastStep = step
				if uerr := e.store.SetProgress(trackID, written, total); uerr != nil {
					e.opts.Logger.Warn("record progress", "track", trackID, "error", uerr)
				}
				e.notify(Event{TrackID: trackID, Status: downloads.StatusDownloading, Bytes: written, Total: total})
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("read stream: %w", err)
		}
	}
}

func progressStep(written, total int64) int {
	if total <= 0 {
		return int(written >> 20)
	}
	return int(written * 100 / total)
}

// verify checks the downloaded bytes carry a known audio signature and
// that any embedded tags parse, and returns the extension for the
// detected container. Files without tags are fine; files whose tags are
// broken are not.
func verify(f *os.File, size int64) (string, error) {
	if size == 0 {
		return "", errors.New("downloaded file is empty")
	}

	header := make([]byte, 16)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read file header: %w", err)
	}
	ext, ok := detectFormat(header[:n])
	if !ok {
		return "", errors.New("not a recognized audio format")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	if _, err := tag.ReadFrom(f); err != nil && !errors.Is(err, tag.ErrNoTagsFound) {
		return "", fmt.Errorf("parse audio tags: %w", err)
	}
	return ext, nil
}

// detectFormat maps well-known audio container signatures to file
// extensions.
func detectFormat(header []byte) (string, bool) {
	switch {
	case len(header) >= 3 && string(header[:3]) == "ID3":
		return ".mp3", true
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return ".mp3", true
	case len(header) >= 4 && string(header[:4]) == "fLaC":
		return ".flac", true
	case len(header) >= 4 && string(header[:4]) == "OggS":
		return ".ogg", true
	case len(header) >= 4 && string(header[:4]) == "RIFF":
		return ".wav", true
	case len(header) >= 8 && string(header[4:8]) == "ftyp":
		return ".m4a", true
	default:
		return "", false
	}
}

var (
	// reQuestionMarks matches ? and ¿
	reQuestionMarks = regexp.MustCompile(`[?¿]+`)
	// reQuoteMarks matches double and fancy double quote marks
	reQuoteMarks = regexp.MustCompile(`["\x{201c}\x{201d}]+`)
	// reUnsafePathChars matches characters not allowed in filenames,
	// with surrounding whitespace
	reUnsafePathChars = regexp.MustCompile(`\s*[/\\><*:|]+\s*`)
	reMultiSpace      = regexp.MustCompile(`\s+`)
)

// sanitizePathPart makes a metadata value safe as a single path element.
func sanitizePathPart(s string) string {
	s = reQuestionMarks.ReplaceAllString(s, "")
	s = reQuoteMarks.ReplaceAllString(s, "'")
	s = reUnsafePathChars.ReplaceAllString(s, " - ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, ". ")
}

func (e *Engine) albumDir(t music.Track) string {
	artist := sanitizePathPart(t.Artist)
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := sanitizePathPart(t.Album)
	if album == "" {
		album = music.UnknownAlbum
	}
	return filepath.Join(e.dir, artist, album)
}

// trackFilename builds "NN Name.ext", prefixing the disc for multi-disc
// albums and omitting the number for unnumbered tracks.
func trackFilename(t music.Track, ext string) string {
	name := sanitizePathPart(t.Name)
	if name == "" {
		name = t.ID
	}
	switch {
	case t.IndexNumber > 0 && t.DiscNumber > 1:
		return fmt.Sprintf("%d-%02d %s%s", t.DiscNumber, t.IndexNumber, name, ext)
	case t.IndexNumber > 0:
		return fmt.Sprintf("%02d %s%s", t.IndexNumber, name, ext)
	default:
		return name + ext
	}
}

// fetchArtwork saves the album's primary image as cover.jpg next to the
// audio file and records its path. Tracks sharing an album share the
// cover; whoever downloads first fetches it.
func (e *Engine) fetchArtwork(ctx context.Context, track music.Track, dir string) error {
	if track.AlbumImageTag == "" {
		return nil
	}
	coverPath := filepath.Join(dir, coverFilename)
	if _, err := os.Stat(coverPath); err == nil {
		return e.store.SetArtwork(track.ID, coverPath)
	}

	itemID := track.AlbumID
	if itemID == "" {
		itemID = track.ID
	}
	url := e.source.ImageURL(itemID, track.AlbumImageTag, e.opts.ArtworkMaxWidth)
	if url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range e.source.ImageHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	f, err := os.Create(coverPath)
	if err != nil {
		return fmt.Errorf("create cover file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(coverPath)
		return fmt.Errorf("save cover: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cover file: %w", err)
	}
	return e.store.SetArtwork(track.ID, coverPath)
}

// Remove deletes a record along with its audio file. The shared album
// cover stays until the album directory empties out.
func (e *Engine) Remove(trackID string) error {
	rec, err := e.store.Get(trackID)
	if err != nil {
		return err
	}
	if err := downloads.RemoveFiles(rec); err != nil {
		return fmt.Errorf("remove audio file: %w", err)
	}
	return e.store.Delete(trackID)
}

// Clear deletes every record and all downloaded files.
func (e *Engine) Clear() error {
	records, err := e.store.List()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := downloads.RemoveFiles(&rec); err != nil {
			return fmt.Errorf("remove audio file: %w", err)
		}
	}
	return e.store.ClearAll()
}

// VerifyOnDisk re-queues completed records whose audio file no longer
// exists on disk and returns the affected tracks.
func (e *Engine) VerifyOnDisk() ([]music.Track, error) {
	completed, err := e.store.Completed()
	if err != nil {
		return nil, err
	}

	var requeued []music.Track
	for _, rec := range completed {
		if rec.LocalPath != "" {
			if _, err := os.Stat(rec.LocalPath); err == nil {
				continue
			}
		}
		if err := e.store.Requeue(rec.Track); err != nil {
			return requeued, err
		}
		requeued = append(requeued, rec.Track)
	}
	return requeued, nil
}
