package playback

import "github.com/cmarret/tideline/internal/music"

// queue holds the play order and the current position. It is not safe
// for concurrent use; the service serializes access under its mutex.
type queue struct {
	tracks []music.Track
	index  int // -1 if nothing current
}

func newQueue() *queue {
	return &queue{index: -1}
}

// current returns a copy of the current track, or nil if none.
func (q *queue) current() *music.Track {
	if q.index < 0 || q.index >= len(q.tracks) {
		return nil
	}
	t := q.tracks[q.index]
	return &t
}

func (q *queue) currentIndex() int {
	return q.index
}

func (q *queue) hasNext() bool {
	return q.index < len(q.tracks)-1
}

func (q *queue) hasPrevious() bool {
	return q.index > 0
}

// next advances to the next track and returns it, or nil at the end.
func (q *queue) next() *music.Track {
	if !q.hasNext() {
		return nil
	}
	q.index++
	return q.current()
}

// previous steps back one track and returns it, or nil at the head.
func (q *queue) previous() *music.Track {
	if !q.hasPrevious() {
		return nil
	}
	q.index--
	return q.current()
}

// jumpTo sets the current index. Returns the track there, or nil if
// the index is out of range (position unchanged in that case).
func (q *queue) jumpTo(index int) *music.Track {
	if index < 0 || index >= len(q.tracks) {
		return nil
	}
	q.index = index
	return q.current()
}

// replace swaps the queue contents and positions it at start. Returns
// the track at start, or nil when the queue ends up empty or start is
// out of range.
func (q *queue) replace(tracks []music.Track, start int) *music.Track {
	q.tracks = make([]music.Track, len(tracks))
	copy(q.tracks, tracks)
	if start < 0 || start >= len(q.tracks) {
		q.index = -1
		return nil
	}
	q.index = start
	return q.current()
}

// all returns a copy of every track in order.
func (q *queue) all() []music.Track {
	out := make([]music.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

func (q *queue) len() int {
	return len(q.tracks)
}
