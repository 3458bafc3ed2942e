package player

import (
	"github.com/cmarret/tideline/internal/music"
)

// Interface is the audio engine contract the playback service drives.
// Implementations play one track at a time and signal natural track
// end on FinishedChan; everything else (queueing, ordering, events) is
// the service's job.
type Interface interface {
	Play(t music.Track) error
	Pause()
	Resume()
	Stop()
	State() State
	FinishedChan() <-chan struct{}
	Close() error
}
