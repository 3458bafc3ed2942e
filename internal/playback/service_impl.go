package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cmarret/tideline/internal/music"
	"github.com/cmarret/tideline/internal/player"
)

// ErrEmptyQueue is returned when playback is requested with no tracks.
var ErrEmptyQueue = errors.New("playback queue is empty")

// Verify serviceImpl implements Service at compile time.
var _ Service = (*serviceImpl)(nil)

// Options tune the service.
type Options struct {
	// Rand drives shuffle permutation. Defaults to an unseeded PCG
	// source; tests inject a seeded one.
	Rand   *rand.Rand
	Logger *slog.Logger
}

type serviceImpl struct {
	mu sync.Mutex

	engine player.Interface
	queue  *queue
	rng    *rand.Rand
	logger *slog.Logger

	// Play-time accounting for the current track. Pauses are excluded
	// so TrackChange.Played reflects audible time only.
	startedAt time.Time
	pausedAt  time.Time
	pausedFor time.Duration

	subs   []*Subscription
	subsMu sync.RWMutex

	done   chan struct{}
	closed bool
}

// New creates a playback service on top of the given engine.
func New(engine player.Interface, opts Options) Service {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // crypto not needed for shuffle
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &serviceImpl{
		engine: engine,
		queue:  newQueue(),
		rng:    opts.Rand,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
	go s.watchFinished()
	return s
}

// PlayTrack plays track with queueCtx as the surrounding queue,
// positioned at the track. If the track does not appear in queueCtx it
// is prepended, so the context still follows it.
func (s *serviceImpl) PlayTrack(track music.Track, queueCtx []music.Track) error {
	if len(queueCtx) == 0 {
		queueCtx = []music.Track{track}
	}
	start := -1
	for i, t := range queueCtx {
		if t.ID == track.ID {
			start = i
			break
		}
	}
	if start < 0 {
		queueCtx = append([]music.Track{track}, queueCtx...)
		start = 0
	}
	return s.startQueue(queueCtx, start)
}

// PlayAlbum plays an album front to back in disc and track order.
func (s *serviceImpl) PlayAlbum(tracks []music.Track, albumID, albumName string) error {
	if len(tracks) == 0 {
		return ErrEmptyQueue
	}
	ordered := make([]music.Track, len(tracks))
	copy(ordered, tracks)
	music.SortTracks(ordered)
	s.logger.Debug("playing album", "album", albumName, "id", albumID, "tracks", len(ordered))
	return s.startQueue(ordered, 0)
}

// PlayShuffled plays the given tracks in a random permutation.
func (s *serviceImpl) PlayShuffled(tracks []music.Track) error {
	if len(tracks) == 0 {
		return ErrEmptyQueue
	}
	shuffled := make([]music.Track, len(tracks))
	copy(shuffled, tracks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return s.startQueueLocked(shuffled, 0)
}

func (s *serviceImpl) startQueue(tracks []music.Track, start int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startQueueLocked(tracks, start)
}

func (s *serviceImpl) startQueueLocked(tracks []music.Track, start int) error {
	prev, played := s.interruptedLocked()
	if s.queue.replace(tracks, start) == nil {
		return ErrEmptyQueue
	}
	s.notifyQueueLocked()
	return s.playCurrentLocked(prev, played, false)
}

// Next advances to the next track. At the end of the queue playback
// stops instead of wrapping.
func (s *serviceImpl) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.len() == 0 {
		return ErrEmptyQueue
	}
	prev, played := s.interruptedLocked()
	if s.queue.next() == nil {
		s.stopLocked(prev, played, false)
		return nil
	}
	return s.playCurrentLocked(prev, played, false)
}

// Previous steps back one track. At the head of the queue (or with no
// current position) it plays from the start.
func (s *serviceImpl) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.len() == 0 {
		return ErrEmptyQueue
	}
	prev, played := s.interruptedLocked()
	if s.queue.previous() == nil {
		s.queue.jumpTo(0)
	}
	return s.playCurrentLocked(prev, played, false)
}

// Pause pauses the engine. No-op unless playing.
func (s *serviceImpl) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.State() != player.Playing {
		return nil
	}
	s.engine.Pause()
	s.pausedAt = time.Now()
	s.notifyState(StatePlaying, StatePaused)
	return nil
}

// Resume resumes a paused engine. No-op unless paused.
func (s *serviceImpl) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.State() != player.Paused {
		return nil
	}
	s.engine.Resume()
	s.pausedFor += time.Since(s.pausedAt)
	s.pausedAt = time.Time{}
	s.notifyState(StatePaused, StatePlaying)
	return nil
}

// Stop halts playback. The queue position is kept.
func (s *serviceImpl) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stateLocked().IsActive() {
		return nil
	}
	prev, played := s.interruptedLocked()
	s.stopLocked(prev, played, false)
	return nil
}

// State returns the current playback state.
func (s *serviceImpl) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Current returns the current track, or nil if none.
func (s *serviceImpl) Current() *music.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.current()
}

// CurrentIndex returns the current queue index (-1 if none).
func (s *serviceImpl) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.currentIndex()
}

// QueueTracks returns a copy of all tracks in the queue.
func (s *serviceImpl) QueueTracks() []music.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.all()
}

// QueueLen returns the number of tracks in the queue.
func (s *serviceImpl) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// Subscribe creates a new event subscription.
func (s *serviceImpl) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close shuts down the service and the engine.
func (s *serviceImpl) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.engine.Stop()
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()

	return s.engine.Close()
}

// watchFinished advances the queue when the engine reports natural
// track end.
func (s *serviceImpl) watchFinished() {
	for {
		select {
		case <-s.engine.FinishedChan():
			s.handleTrackFinished()
		case <-s.done:
			return
		}
	}
}

func (s *serviceImpl) handleTrackFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.queue.current()
	if prev == nil {
		return
	}
	// A track that reached its end counts as fully played.
	played := prev.Duration

	next := s.queue.next()
	if next == nil {
		s.stopLocked(prev, played, true)
		return
	}
	if err := s.playCurrentLocked(prev, played, true); err != nil {
		s.logger.Warn("advance after track end", "track", next.Name, "error", err)
		s.stopLocked(prev, played, true)
	}
}

// interruptedLocked captures the track being displaced and its play
// time, for the TrackChange event of whatever happens next. Returns
// nil when nothing is actively playing.
func (s *serviceImpl) interruptedLocked() (*music.Track, time.Duration) {
	if !s.stateLocked().IsActive() {
		return nil, 0
	}
	return s.queue.current(), s.playedLocked()
}

// playCurrentLocked starts the engine on the queue's current track and
// emits the matching events. Callers hold mu.
func (s *serviceImpl) playCurrentLocked(prev *music.Track, played time.Duration, finished bool) error {
	cur := s.queue.current()
	if cur == nil {
		return ErrEmptyQueue
	}
	prevState := s.stateLocked()
	if err := s.engine.Play(*cur); err != nil {
		return fmt.Errorf("play %q: %w", cur.Name, err)
	}
	s.startedAt = time.Now()
	s.pausedAt = time.Time{}
	s.pausedFor = 0

	s.notifyTrack(TrackChange{
		Previous: prev,
		Current:  cur,
		Index:    s.queue.currentIndex(),
		Played:   played,
		Finished: finished,
	})
	if prevState != StatePlaying {
		s.notifyState(prevState, StatePlaying)
	}
	return nil
}

// stopLocked halts the engine and emits a terminal TrackChange when a
// track was displaced. Callers hold mu.
func (s *serviceImpl) stopLocked(prev *music.Track, played time.Duration, finished bool) {
	prevState := s.stateLocked()
	s.engine.Stop()
	s.startedAt = time.Time{}
	s.pausedAt = time.Time{}
	s.pausedFor = 0

	if prev != nil {
		s.notifyTrack(TrackChange{
			Previous: prev,
			Current:  nil,
			Index:    -1,
			Played:   played,
			Finished: finished,
		})
	}
	if prevState != StateStopped {
		s.notifyState(prevState, StateStopped)
	}
}

func (s *serviceImpl) stateLocked() State {
	switch s.engine.State() {
	case player.Playing:
		return StatePlaying
	case player.Paused:
		return StatePaused
	default:
		return StateStopped
	}
}

// playedLocked returns how long the current track has audibly played.
func (s *serviceImpl) playedLocked() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	played := time.Since(s.startedAt) - s.pausedFor
	if !s.pausedAt.IsZero() {
		played -= time.Since(s.pausedAt)
	}
	if played < 0 {
		return 0
	}
	return played
}

// Event fan-out. Sends are non-blocking so emitting under mu is safe.

func (s *serviceImpl) notifyState(prev, cur State) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendState(StateChange{Previous: prev, Current: cur})
	}
}

func (s *serviceImpl) notifyTrack(e TrackChange) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendTrack(e)
	}
}

func (s *serviceImpl) notifyQueueLocked() {
	e := QueueChange{Tracks: s.queue.all(), Index: s.queue.currentIndex()}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendQueue(e)
	}
}
