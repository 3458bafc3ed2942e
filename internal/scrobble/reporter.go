// Package scrobble fans finished tracks out to the configured listen
// services. Listens that cannot go out right away, because the device
// is offline or a service rejects them, land in a persistent queue and
// are flushed when connectivity returns.
package scrobble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmarret/tideline/internal/connectivity"
	"github.com/cmarret/tideline/internal/music"
	"github.com/cmarret/tideline/internal/state"
)

// Listen is one play to report.
type Listen struct {
	TrackID       string
	Artist        string
	Track         string
	Album         string
	Duration      time.Duration
	ListenedAt    time.Time
	MBRecordingID string
}

// ListenFromTrack builds a listen from track metadata. The MusicBrainz
// recording id rides along when the server carries one.
func ListenFromTrack(t music.Track, listenedAt time.Time) Listen {
	return Listen{
		TrackID:       t.ID,
		Artist:        t.Artist,
		Track:         t.Name,
		Album:         t.Album,
		Duration:      t.Duration,
		ListenedAt:    listenedAt,
		MBRecordingID: t.ProviderIDs["MusicBrainzTrack"],
	}
}

// Backend is one listen service.
type Backend interface {
	Name() string
	Configured() bool
	Submit(ctx context.Context, l Listen) error
	PlayingNow(ctx context.Context, l Listen) error
}

// Queue persists listens for later delivery. *state.Manager satisfies it.
type Queue interface {
	AddPendingListen(l state.PendingListen) error
	PendingListens() ([]state.PendingListen, error)
	PendingListenCount() (int, error)
	DeletePendingListen(id int64) error
	UpdatePendingListenAttempt(id int64, errMsg string) error
}

// Modes exposes the current connectivity snapshot.
type Modes interface {
	Snapshot() connectivity.Snapshot
}

// Reporter routes listens to backends or the offline queue.
type Reporter struct {
	queue    Queue
	modes    Modes
	backends []Backend
	logger   *slog.Logger

	// flushMu keeps concurrent flushes from double-submitting.
	flushMu sync.Mutex
}

// New creates a reporter over the given backends. Backends that report
// themselves unconfigured are skipped at submission time, so it is fine
// to pass every known backend.
func New(queue Queue, modes Modes, logger *slog.Logger, backends ...Backend) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		queue:    queue,
		modes:    modes,
		backends: backends,
		logger:   logger,
	}
}

// Enabled reports whether at least one backend can accept listens.
func (r *Reporter) Enabled() bool {
	for _, b := range r.backends {
		if b.Configured() {
			return true
		}
	}
	return false
}

// Report submits a finished play. Offline listens queue directly; a
// live submission that fails queues with the failure recorded so the
// history survives into the retry.
func (r *Reporter) Report(ctx context.Context, l Listen) error {
	if !r.Enabled() {
		return nil
	}

	snap := r.modes.Snapshot()
	if snap.OfflineMode || !snap.NetworkAvailable {
		return r.enqueue(l, 0, "")
	}

	if err := r.submit(ctx, l); err != nil {
		r.logger.Warn("listen submission failed, queueing",
			"track", l.Track,
			"error", err)
		return r.enqueue(l, 1, err.Error())
	}
	return nil
}

// PlayingNow announces the current track to every configured backend.
// Best effort: failures are logged, nothing queues.
func (r *Reporter) PlayingNow(ctx context.Context, l Listen) {
	snap := r.modes.Snapshot()
	if snap.OfflineMode || !snap.NetworkAvailable {
		return
	}
	for _, b := range r.backends {
		if !b.Configured() {
			continue
		}
		if err := b.PlayingNow(ctx, l); err != nil {
			r.logger.Debug("playing now failed",
				"backend", b.Name(),
				"error", err)
		}
	}
}

// Flush drains the pending queue oldest first, stopping at the first
// failure so submission order is preserved. It reports how many listens
// went out. Flushing while offline is a no-op.
func (r *Reporter) Flush(ctx context.Context) (int, error) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	snap := r.modes.Snapshot()
	if snap.OfflineMode || !snap.NetworkAvailable {
		return 0, nil
	}

	pending, err := r.queue.PendingListens()
	if err != nil {
		return 0, fmt.Errorf("load pending listens: %w", err)
	}

	flushed := 0
	for _, p := range pending {
		if err := r.submit(ctx, listenFromPending(p)); err != nil {
			if uerr := r.queue.UpdatePendingListenAttempt(p.ID, err.Error()); uerr != nil {
				r.logger.Error("record listen attempt", "error", uerr)
			}
			return flushed, err
		}
		if err := r.queue.DeletePendingListen(p.ID); err != nil {
			return flushed, fmt.Errorf("remove submitted listen: %w", err)
		}
		flushed++
	}
	return flushed, nil
}

// Pending returns the depth of the offline queue.
func (r *Reporter) Pending() (int, error) {
	return r.queue.PendingListenCount()
}

// submit fans the listen out to every configured backend. The first
// failure becomes the returned error; later ones are logged so a broken
// backend does not hide behind an earlier one.
func (r *Reporter) submit(ctx context.Context, l Listen) error {
	var firstErr error
	for _, b := range r.backends {
		if !b.Configured() {
			continue
		}
		if err := b.Submit(ctx, l); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", b.Name(), err)
			} else {
				r.logger.Warn("listen submission failed",
					"backend", b.Name(),
					"error", err)
			}
		}
	}
	return firstErr
}

func (r *Reporter) enqueue(l Listen, attempts int, lastErr string) error {
	err := r.queue.AddPendingListen(state.PendingListen{
		TrackID:       l.TrackID,
		Artist:        l.Artist,
		Track:         l.Track,
		Album:         l.Album,
		DurationSecs:  int(l.Duration.Seconds()),
		ListenedAt:    l.ListenedAt,
		MBRecordingID: l.MBRecordingID,
		Attempts:      attempts,
		LastError:     lastErr,
	})
	if err != nil {
		return fmt.Errorf("queue listen: %w", err)
	}
	return nil
}

func listenFromPending(p state.PendingListen) Listen {
	return Listen{
		TrackID:       p.TrackID,
		Artist:        p.Artist,
		Track:         p.Track,
		Album:         p.Album,
		Duration:      time.Duration(p.DurationSecs) * time.Second,
		ListenedAt:    p.ListenedAt,
		MBRecordingID: p.MBRecordingID,
	}
}
