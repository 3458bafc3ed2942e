package scrobble

import (
	"context"

	"github.com/cmarret/tideline/internal/lastfm"
	"github.com/cmarret/tideline/internal/listenbrainz"
)

// ListenBrainzBackend submits listens through the ListenBrainz client.
type ListenBrainzBackend struct {
	client *listenbrainz.Client
}

func NewListenBrainzBackend(client *listenbrainz.Client) *ListenBrainzBackend {
	return &ListenBrainzBackend{client: client}
}

func (b *ListenBrainzBackend) Name() string { return "listenbrainz" }

func (b *ListenBrainzBackend) Configured() bool { return b.client.Configured() }

func (b *ListenBrainzBackend) Submit(ctx context.Context, l Listen) error {
	return b.client.SubmitListen(ctx, brainzListen(l))
}

func (b *ListenBrainzBackend) PlayingNow(ctx context.Context, l Listen) error {
	return b.client.PlayingNow(ctx, brainzListen(l))
}

func brainzListen(l Listen) listenbrainz.Listen {
	return listenbrainz.Listen{
		Artist:        l.Artist,
		Track:         l.Track,
		Album:         l.Album,
		ListenedAt:    l.ListenedAt,
		Duration:      l.Duration,
		MBRecordingID: l.MBRecordingID,
	}
}

// LastfmBackend submits listens through the Last.fm client. The
// underlying library does not take contexts, so cancellation only
// applies between calls.
type LastfmBackend struct {
	client *lastfm.Client
}

func NewLastfmBackend(client *lastfm.Client) *LastfmBackend {
	return &LastfmBackend{client: client}
}

func (b *LastfmBackend) Name() string { return "lastfm" }

func (b *LastfmBackend) Configured() bool { return b.client.IsAuthenticated() }

func (b *LastfmBackend) Submit(_ context.Context, l Listen) error {
	return b.client.Scrobble(scrobbleTrack(l))
}

func (b *LastfmBackend) PlayingNow(_ context.Context, l Listen) error {
	return b.client.UpdateNowPlaying(scrobbleTrack(l))
}

func scrobbleTrack(l Listen) lastfm.ScrobbleTrack {
	return lastfm.ScrobbleTrack{
		Artist:        l.Artist,
		Track:         l.Track,
		Album:         l.Album,
		Duration:      l.Duration,
		Timestamp:     l.ListenedAt,
		MBRecordingID: l.MBRecordingID,
	}
}
