package scrobble

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmarret/tideline/internal/playback"
)

// Watcher bridges playback events into listen reports.
type Watcher struct {
	reporter *Reporter
	logger   *slog.Logger
}

// NewWatcher creates a watcher feeding the given reporter.
func NewWatcher(r *Reporter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{reporter: r, logger: logger}
}

// Run consumes playback events until the subscription closes or ctx
// ends. Qualifying plays become listen reports; every new track is
// announced as playing now.
func (w *Watcher) Run(ctx context.Context, sub *playback.Subscription) {
	for {
		select {
		case e := <-sub.TrackChanged:
			w.handleTrackChange(ctx, e)
		case <-sub.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleTrackChange(ctx context.Context, e playback.TrackChange) {
	if e.Previous != nil && qualifies(e.Previous.Duration, e.Played) {
		listenedAt := time.Now().Add(-e.Played)
		if err := w.reporter.Report(ctx, ListenFromTrack(*e.Previous, listenedAt)); err != nil {
			w.logger.Error("report listen", "track", e.Previous.Name, "error", err)
		}
	}
	if e.Current != nil {
		w.reporter.PlayingNow(ctx, ListenFromTrack(*e.Current, time.Now()))
	}
}

// qualifies applies the standard submission rule: a listen counts once
// half the track or four minutes have played, whichever comes first.
// Tracks under thirty seconds never count.
func qualifies(duration, played time.Duration) bool {
	if duration < 30*time.Second {
		return false
	}
	threshold := duration / 2
	if fourMinutes := 4 * time.Minute; fourMinutes < threshold {
		threshold = fourMinutes
	}
	return played >= threshold
}
