package resolver

import (
	"sync"

	"github.com/cmarret/tideline/internal/music"
)

// FilterCache memoizes a derived list keyed by the identity of its
// source slice and an offline-mode bit. Identity is the address of the
// first element plus the length; the source collections are treated as
// immutable once produced upstream, so reference equality is enough.
// The filter func runs only when either key part changed since the
// last call.
type FilterCache[T any] struct {
	mu     sync.Mutex
	filter func(src []T, offline bool) []T

	valid   bool
	srcHead *T
	srcLen  int
	offline bool
	result  []T
}

// NewFilterCache creates a cache around the given derivation.
func NewFilterCache[T any](filter func(src []T, offline bool) []T) *FilterCache[T] {
	return &FilterCache[T]{filter: filter}
}

// Get returns the derived list, recomputing only when the source
// identity or the mode bit changed.
func (c *FilterCache[T]) Get(src []T, offline bool) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	var head *T
	if len(src) > 0 {
		head = &src[0]
	}
	if c.valid && c.srcHead == head && c.srcLen == len(src) && c.offline == offline {
		return c.result
	}

	c.result = c.filter(src, offline)
	c.valid = true
	c.srcHead = head
	c.srcLen = len(src)
	c.offline = offline
	return c.result
}

// Invalidate drops the cached result; the next Get recomputes.
func (c *FilterCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.srcHead = nil
	c.result = nil
}

// NewOfflineFavoritesFilter builds the favorites derivation: while
// offline the list narrows to tracks present in the download store,
// online it passes through unchanged.
func NewOfflineFavoritesFilter(isDownloaded func(trackID string) bool) *FilterCache[music.Track] {
	return NewFilterCache(func(src []music.Track, offline bool) []music.Track {
		if !offline {
			return src
		}
		out := make([]music.Track, 0, len(src))
		for _, t := range src {
			if isDownloaded(t.ID) {
				out = append(out, t)
			}
		}
		return out
	})
}
