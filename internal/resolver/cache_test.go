package resolver

import (
	"testing"

	"github.com/cmarret/tideline/internal/music"
)

func TestFilterCache_ZeroRecompute(t *testing.T) {
	computes := 0
	cache := NewFilterCache(func(src []int, offline bool) []int {
		computes++
		if !offline {
			return src
		}
		var out []int
		for _, v := range src {
			if v%2 == 0 {
				out = append(out, v)
			}
		}
		return out
	})

	src := []int{1, 2, 3, 4}

	first := cache.Get(src, true)
	if computes != 1 {
		t.Fatalf("computes = %d after first call, want 1", computes)
	}
	if len(first) != 2 {
		t.Fatalf("first = %v, want evens", first)
	}

	// Same source identity, same mode: served from cache.
	second := cache.Get(src, true)
	if computes != 1 {
		t.Errorf("computes = %d after repeat call, want 1", computes)
	}
	if &second[0] != &first[0] {
		t.Error("repeat call returned a different slice")
	}
}

func TestFilterCache_ModeChangeRecomputesOnce(t *testing.T) {
	computes := 0
	cache := NewFilterCache(func(src []int, _ bool) []int {
		computes++
		return src
	})

	src := []int{1, 2, 3}
	cache.Get(src, false)
	cache.Get(src, true)
	if computes != 2 {
		t.Errorf("computes = %d after mode flip, want 2", computes)
	}
	cache.Get(src, true)
	if computes != 2 {
		t.Errorf("computes = %d after repeat, want 2", computes)
	}
}

func TestFilterCache_SourceIdentityChangeRecomputes(t *testing.T) {
	computes := 0
	cache := NewFilterCache(func(src []int, _ bool) []int {
		computes++
		return src
	})

	first := []int{1, 2, 3}
	second := []int{1, 2, 3} // equal values, different identity

	cache.Get(first, false)
	cache.Get(second, false)
	if computes != 2 {
		t.Errorf("computes = %d after identity change, want 2", computes)
	}
}

func TestFilterCache_LengthChangeRecomputes(t *testing.T) {
	computes := 0
	cache := NewFilterCache(func(src []int, _ bool) []int {
		computes++
		return src
	})

	backing := []int{1, 2, 3, 4}
	cache.Get(backing[:3], false)
	// Same first-element address, longer view.
	cache.Get(backing, false)
	if computes != 2 {
		t.Errorf("computes = %d after length change, want 2", computes)
	}
}

func TestFilterCache_Invalidate(t *testing.T) {
	computes := 0
	cache := NewFilterCache(func(src []int, _ bool) []int {
		computes++
		return src
	})

	src := []int{1}
	cache.Get(src, false)
	cache.Invalidate()
	cache.Get(src, false)
	if computes != 2 {
		t.Errorf("computes = %d after invalidate, want 2", computes)
	}
}

func TestFilterCache_EmptySource(t *testing.T) {
	computes := 0
	cache := NewFilterCache(func(src []int, _ bool) []int {
		computes++
		return src
	})

	cache.Get(nil, false)
	cache.Get(nil, false)
	if computes != 1 {
		t.Errorf("computes = %d for repeated nil source, want 1", computes)
	}
	cache.Get(nil, true)
	if computes != 2 {
		t.Errorf("computes = %d after mode change on nil source, want 2", computes)
	}
}

func TestOfflineFavoritesFilter(t *testing.T) {
	downloaded := map[string]bool{"t1": true, "t3": true}
	cache := NewOfflineFavoritesFilter(func(trackID string) bool {
		return downloaded[trackID]
	})

	favorites := []music.Track{
		{ID: "t1", Name: "One", Favorite: true},
		{ID: "t2", Name: "Two", Favorite: true},
		{ID: "t3", Name: "Three", Favorite: true},
	}

	// Online: passthrough, same identity.
	online := cache.Get(favorites, false)
	if len(online) != 3 {
		t.Fatalf("online len = %d, want 3", len(online))
	}
	if &online[0] != &favorites[0] {
		t.Error("online result is not the source slice")
	}

	// Offline: narrowed to downloaded tracks.
	offlineList := cache.Get(favorites, true)
	if len(offlineList) != 2 {
		t.Fatalf("offline len = %d, want 2", len(offlineList))
	}
	if offlineList[0].ID != "t1" || offlineList[1].ID != "t3" {
		t.Errorf("offline items = %+v", offlineList)
	}
}
