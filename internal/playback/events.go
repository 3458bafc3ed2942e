package playback

import (
	"time"

	"github.com/cmarret/tideline/internal/music"
)

// StateChange is emitted when the playback state changes.
type StateChange struct {
	Previous State
	Current  State
}

// TrackChange is emitted when playback moves to a different track.
//
// Previous is nil when playback starts from silence; Current is nil
// when the queue runs out or playback stops. Played is how long the
// previous track actually played (pauses excluded) and Finished
// reports whether it reached its natural end. Listen reporting keys
// on those two fields.
type TrackChange struct {
	Previous *music.Track
	Current  *music.Track
	Index    int
	Played   time.Duration
	Finished bool
}

// QueueChange is emitted when the queue contents are replaced.
type QueueChange struct {
	Tracks []music.Track
	Index  int
}
