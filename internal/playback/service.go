package playback

import (
	"github.com/cmarret/tideline/internal/music"
)

// Service defines the playback service contract.
type Service interface {
	// Playback control
	PlayTrack(track music.Track, queueCtx []music.Track) error
	PlayAlbum(tracks []music.Track, albumID, albumName string) error
	PlayShuffled(tracks []music.Track) error
	Next() error
	Previous() error
	Pause() error
	Resume() error
	Stop() error

	// State queries
	State() State
	Current() *music.Track
	CurrentIndex() int

	// Queue queries
	QueueTracks() []music.Track
	QueueLen() int

	// Event subscription
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}
