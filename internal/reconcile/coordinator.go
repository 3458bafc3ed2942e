// Package reconcile reacts to connectivity transitions: it decides
// which registered views must re-resolve, guards stale async results
// with per-view generations, and raises banner-level signals for the
// presentation layer.
package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cmarret/tideline/internal/connectivity"
	"github.com/cmarret/tideline/internal/resolver"
)

// State classifies a connectivity snapshot. The user's offline request
// wins; otherwise reachability decides.
type State int

const (
	StateOnlineConnected State = iota
	StateOnlineDisconnected
	StateOfflineRequested
)

func (s State) String() string {
	switch s {
	case StateOnlineConnected:
		return "online"
	case StateOnlineDisconnected:
		return "disconnected"
	case StateOfflineRequested:
		return "offline"
	default:
		return "unknown"
	}
}

// StateOf derives the coordinator state from a snapshot.
func StateOf(snap connectivity.Snapshot) State {
	if snap.OfflineMode {
		return StateOfflineRequested
	}
	if snap.NetworkAvailable {
		return StateOnlineConnected
	}
	return StateOnlineDisconnected
}

// Banner is the persistent signal raised to the presentation layer.
type Banner int

const (
	BannerNone Banner = iota
	BannerDegraded
)

func (b Banner) String() string {
	if b == BannerDegraded {
		return "degraded"
	}
	return "none"
}

// Event is emitted on every state transition.
type Event struct {
	State  State
	Banner Banner
}

// Update is what a view resolve hands back: the source the data came
// from and an apply step. Apply runs only if the resolve is still the
// view's newest; it must be quick and must not call back into the
// coordinator.
type Update struct {
	Source resolver.Source
	Apply  func()
}

// ResolveFunc performs a view's fetch. It runs on a coordinator
// goroutine and should honor the context.
type ResolveFunc func(ctx context.Context) (Update, error)

// Tracker is the connectivity surface the coordinator consumes.
type Tracker interface {
	Snapshot() connectivity.Snapshot
	Subscribe() *connectivity.Subscription
}

const sourceUnset = resolver.Source(-1)

type view struct {
	id      int
	kind    resolver.Kind
	resolve ResolveFunc

	gen    uint64
	source resolver.Source
}

// Coordinator owns the view registry and the transition logic.
type Coordinator struct {
	tracker Tracker
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	views  map[int]*view
	nextID int

	// invalidators clear mode-keyed caches on offline toggles.
	invalidators []func()
	// reconnect hooks run when the state settles back to online.
	reconnectHooks []func(ctx context.Context) error

	subs   []*Subscription
	subsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	// wg counts in-flight resolves and hooks; loopWg the event loop.
	wg     sync.WaitGroup
	loopWg sync.WaitGroup

	closeOnce sync.Once
}

// New creates a coordinator and starts consuming tracker changes.
func New(tracker Tracker, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		tracker: tracker,
		logger:  logger,
		state:   StateOf(tracker.Snapshot()),
		views:   make(map[int]*view),
		ctx:     ctx,
		cancel:  cancel,
	}

	sub := tracker.Subscribe()
	c.loopWg.Add(1)
	go c.loop(sub)

	return c
}

// State returns the current derived state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Banner returns the banner matching the current state.
func (c *Coordinator) Banner() Banner {
	if c.State() == StateOnlineDisconnected {
		return BannerDegraded
	}
	return BannerNone
}

// Register adds a view to the registry and returns its id. The view is
// not resolved until Refresh is called or a transition affects it.
func (c *Coordinator) Register(kind resolver.Kind, resolve ResolveFunc) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	v := &view{
		id:      c.nextID,
		kind:    kind,
		resolve: resolve,
		source:  sourceUnset,
	}
	c.views[v.id] = v
	return v.id
}

// Unregister removes a view. In-flight resolves for it are discarded.
func (c *Coordinator) Unregister(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[id]; ok {
		v.gen++ // orphan any in-flight resolve
		delete(c.views, id)
	}
}

// RegisterInvalidator adds a cache invalidation hook run on every
// offline-mode toggle.
func (c *Coordinator) RegisterInvalidator(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidators = append(c.invalidators, fn)
}

// OnReconnect adds a hook run whenever the state settles back to
// online, after the degraded views have been queued for refresh. Used
// to flush queued listens.
func (c *Coordinator) OnReconnect(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectHooks = append(c.reconnectHooks, fn)
}

// Subscribe creates a new event subscription.
func (c *Coordinator) Subscribe() *Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	sub := newSubscription()
	c.subs = append(c.subs, sub)
	return sub
}

// Refresh re-resolves one view regardless of its current source.
func (c *Coordinator) Refresh(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[id]; ok {
		c.startResolve(v)
	}
}

// RefreshAll re-resolves every registered view.
func (c *Coordinator) RefreshAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.views {
		c.startResolve(v)
	}
}

// Wait blocks until all in-flight resolves have completed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close stops the coordinator, cancels in-flight resolves and releases
// subscriptions.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.loopWg.Wait()
		c.wg.Wait()

		c.subsMu.Lock()
		for _, sub := range c.subs {
			sub.close()
		}
		c.subs = nil
		c.subsMu.Unlock()
	})
}

func (c *Coordinator) loop(sub *connectivity.Subscription) {
	defer c.loopWg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-sub.Done:
			return
		case change := <-sub.Changes:
			c.handleChange(change)
		}
	}
}

func (c *Coordinator) handleChange(change connectivity.Change) {
	prev := StateOf(change.Previous)
	next := StateOf(change.Current)

	toggled := change.Previous.OfflineMode != change.Current.OfflineMode

	c.mu.Lock()
	c.state = next

	// Mode-keyed caches go stale the moment the toggle lands, even if
	// the derived state did not change.
	if toggled {
		for _, fn := range c.invalidators {
			fn()
		}
	}

	if prev == next {
		c.mu.Unlock()
		return
	}

	// Re-resolve every view not already serving the target source.
	// Demo views are pinned; connectivity does not affect them.
	target := targetSource(next)
	for _, v := range c.views {
		if v.source == resolver.SourceDemo {
			continue
		}
		if v.source != target {
			c.startResolve(v)
		}
	}

	var hooks []func(ctx context.Context) error
	if next == StateOnlineConnected {
		hooks = append(hooks, c.reconnectHooks...)
	}
	c.mu.Unlock()

	for _, hook := range hooks {
		c.wg.Add(1)
		go func(fn func(ctx context.Context) error) {
			defer c.wg.Done()
			if err := fn(c.ctx); err != nil {
				c.logger.Warn("reconnect hook failed", "error", err)
			}
		}(hook)
	}

	c.notify(Event{State: next, Banner: bannerFor(next)})
}

// startResolve launches a view resolve under a fresh generation.
// Callers hold c.mu.
func (c *Coordinator) startResolve(v *view) {
	v.gen++
	gen := v.gen

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		upd, err := v.resolve(c.ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if current, ok := c.views[v.id]; !ok || current.gen != gen {
			// A newer resolve superseded this one. Drop it silently.
			return
		}
		if err != nil {
			// The view keeps its previous data; the caller's resolve
			// closure is responsible for surfacing the error flag.
			c.logger.Warn("view refresh failed",
				"view", v.kind.String(),
				"error", err)
			return
		}
		v.source = upd.Source
		if upd.Apply != nil {
			upd.Apply()
		}
	}()
}

func (c *Coordinator) notify(e Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, sub := range c.subs {
		sub.send(e)
	}
}

func targetSource(s State) resolver.Source {
	if s == StateOnlineConnected {
		return resolver.SourceServer
	}
	return resolver.SourceDownloads
}

func bannerFor(s State) Banner {
	if s == StateOnlineDisconnected {
		return BannerDegraded
	}
	return BannerNone
}
