// Package connectivity tracks the two flags that gate remote fetching:
// the user's offline-mode preference and network reachability. It owns
// no refetching logic itself, it only notifies subscribers on change.
package connectivity

import (
	"log/slog"
	"sync"
)

// Snapshot is a point-in-time view of both flags.
type Snapshot struct {
	OfflineMode      bool
	NetworkAvailable bool
}

// Change carries the snapshots around a flag flip.
type Change struct {
	Previous Snapshot
	Current  Snapshot
}

// Store persists the offline-mode preference across runs.
type Store interface {
	OfflineMode() (bool, error)
	SetOfflineMode(enabled bool) error
}

// Tracker holds the connectivity snapshot and fans out changes.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot

	store  Store
	logger *slog.Logger

	subs   []*Subscription
	subsMu sync.Mutex
	closed bool
}

// New creates a tracker. The persisted offline preference is loaded
// from the store; the network starts as available until a probe says
// otherwise. store may be nil (preference lives in memory only).
func New(store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		snap:   Snapshot{NetworkAvailable: true},
		store:  store,
		logger: logger,
	}
	if store != nil {
		offline, err := store.OfflineMode()
		if err != nil {
			logger.Warn("load offline preference", "error", err)
		} else {
			t.snap.OfflineMode = offline
		}
	}
	return t
}

// Snapshot returns the current flags.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// OfflineMode reports whether the user requested offline mode.
func (t *Tracker) OfflineMode() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.OfflineMode
}

// NetworkAvailable reports the last known reachability state.
func (t *Tracker) NetworkAvailable() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.NetworkAvailable
}

// ToggleOfflineMode flips the offline preference and returns the new
// value.
func (t *Tracker) ToggleOfflineMode() bool {
	t.mu.Lock()
	next := !t.snap.OfflineMode
	t.mu.Unlock()
	t.SetOfflineMode(next)
	return next
}

// SetOfflineMode sets the offline preference. Subscribers are notified
// only when the value actually changes. The preference is persisted;
// persistence failures are logged, never block the change.
func (t *Tracker) SetOfflineMode(enabled bool) {
	t.mu.Lock()
	if t.snap.OfflineMode == enabled {
		t.mu.Unlock()
		return
	}
	prev := t.snap
	t.snap.OfflineMode = enabled
	curr := t.snap
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.SetOfflineMode(enabled); err != nil {
			t.logger.Warn("persist offline preference", "error", err)
		}
	}
	t.notify(Change{Previous: prev, Current: curr})
}

// SetNetworkAvailable records the reachability probe result.
// Subscribers are notified only when the value actually changes.
func (t *Tracker) SetNetworkAvailable(available bool) {
	t.mu.Lock()
	if t.snap.NetworkAvailable == available {
		t.mu.Unlock()
		return
	}
	prev := t.snap
	t.snap.NetworkAvailable = available
	curr := t.snap
	t.mu.Unlock()

	t.notify(Change{Previous: prev, Current: curr})
}

// Subscribe creates a new change subscription.
func (t *Tracker) Subscribe() *Subscription {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	sub := newSubscription()
	t.subs = append(t.subs, sub)
	return sub
}

// Close releases all subscriptions.
func (t *Tracker) Close() {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, sub := range t.subs {
		sub.close()
	}
	t.subs = nil
}

func (t *Tracker) notify(e Change) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for _, sub := range t.subs {
		sub.send(e)
	}
}
