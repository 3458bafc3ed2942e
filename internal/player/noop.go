package player

import (
	"sync"

	"github.com/cmarret/tideline/internal/music"
)

// Noop is an engine that tracks state without touching an audio
// device. It backs tests and headless CLI runs; a real engine (mpv,
// beep, a cast target) slots in behind the same Interface.
type Noop struct {
	mu      sync.Mutex
	state   State
	current *music.Track
	played  []music.Track
	playErr error

	finishedCh chan struct{}
	closeOnce  sync.Once
}

// NewNoop creates a silent player.
func NewNoop() *Noop {
	return &Noop{
		finishedCh: make(chan struct{}, 1),
	}
}

func (p *Noop) Play(t music.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.current = &t
	p.played = append(p.played, t)
	p.state = Playing
	return nil
}

func (p *Noop) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.CanPause() {
		p.state = Paused
	}
}

func (p *Noop) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.CanResume() {
		p.state = Playing
	}
}

func (p *Noop) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Stopped
	p.current = nil
}

func (p *Noop) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Noop) FinishedChan() <-chan struct{} {
	return p.finishedCh
}

func (p *Noop) Close() error {
	p.Stop()
	return nil
}

// FinishTrack simulates the current track reaching its natural end.
func (p *Noop) FinishTrack() {
	p.mu.Lock()
	if p.state != Playing {
		p.mu.Unlock()
		return
	}
	p.state = Stopped
	p.current = nil
	p.mu.Unlock()

	select {
	case p.finishedCh <- struct{}{}:
	default:
	}
}

// Test helpers

func (p *Noop) SetPlayError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playErr = err
}

// Played returns every track handed to Play, in order.
func (p *Noop) Played() []music.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]music.Track, len(p.played))
	copy(out, p.played)
	return out
}

// Current returns the track the engine is holding, or nil when stopped.
func (p *Noop) Current() *music.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	t := *p.current
	return &t
}

// Verify Noop implements Interface at compile time.
var _ Interface = (*Noop)(nil)
