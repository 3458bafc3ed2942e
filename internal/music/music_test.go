package music

import (
	"reflect"
	"testing"
)

func TestSortTracks(t *testing.T) {
	tests := []struct {
		name  string
		in    []Track
		order []string // expected names after sorting
	}{
		{
			name: "by index within one disc",
			in: []Track{
				{Name: "c", DiscNumber: 1, IndexNumber: 3},
				{Name: "a", DiscNumber: 1, IndexNumber: 1},
				{Name: "b", DiscNumber: 1, IndexNumber: 2},
			},
			order: []string{"a", "b", "c"},
		},
		{
			name: "disc beats index",
			in: []Track{
				{Name: "late", DiscNumber: 2, IndexNumber: 1},
				{Name: "early", DiscNumber: 1, IndexNumber: 9},
			},
			order: []string{"early", "late"},
		},
		{
			name: "missing disc sorts first",
			in: []Track{
				{Name: "on disc one", DiscNumber: 1, IndexNumber: 1},
				{Name: "no disc", IndexNumber: 5},
			},
			order: []string{"no disc", "on disc one"},
		},
		{
			name: "missing index sorts before numbered",
			in: []Track{
				{Name: "second", DiscNumber: 1, IndexNumber: 1},
				{Name: "first", DiscNumber: 1},
			},
			order: []string{"first", "second"},
		},
		{
			name: "name breaks full ties case-insensitively",
			in: []Track{
				{Name: "Zebra", DiscNumber: 1, IndexNumber: 2},
				{Name: "apple", DiscNumber: 1, IndexNumber: 2},
			},
			order: []string{"apple", "Zebra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks := make([]Track, len(tt.in))
			copy(tracks, tt.in)
			SortTracks(tracks)
			got := trackNames(tracks)
			if !reflect.DeepEqual(got, tt.order) {
				t.Errorf("SortTracks order = %v, want %v", got, tt.order)
			}
		})
	}
}

func TestSortTracks_DeterministicAcrossInputOrders(t *testing.T) {
	a := []Track{
		{ID: "1", Name: "one", DiscNumber: 1, IndexNumber: 1},
		{ID: "2", Name: "two", DiscNumber: 1},
		{ID: "3", Name: "three", DiscNumber: 2, IndexNumber: 1},
		{ID: "4", Name: "four", DiscNumber: 1, IndexNumber: 2},
	}
	b := []Track{a[3], a[1], a[0], a[2]}

	SortTracks(a)
	SortTracks(b)

	if !reflect.DeepEqual(trackNames(a), trackNames(b)) {
		t.Errorf("sort not deterministic: %v vs %v", trackNames(a), trackNames(b))
	}
}

func TestEffectiveTrackNumber(t *testing.T) {
	if got := EffectiveTrackNumber(Track{IndexNumber: 7}, 3); got != 7 {
		t.Errorf("EffectiveTrackNumber with server index = %d, want 7", got)
	}
	if got := EffectiveTrackNumber(Track{}, 3); got != 3 {
		t.Errorf("EffectiveTrackNumber without server index = %d, want 3", got)
	}
}

func TestDisplayNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   []Track
		want []int
	}{
		{
			name: "all numbered",
			in: []Track{
				{DiscNumber: 1, IndexNumber: 1},
				{DiscNumber: 1, IndexNumber: 2},
			},
			want: []int{1, 2},
		},
		{
			name: "unnumbered counted per disc among unnumbered only",
			in: []Track{
				{DiscNumber: 1},
				{DiscNumber: 1, IndexNumber: 3},
				{DiscNumber: 1},
			},
			want: []int{1, 3, 2},
		},
		{
			name: "counters independent per disc",
			in: []Track{
				{DiscNumber: 1},
				{DiscNumber: 2},
				{DiscNumber: 1},
				{DiscNumber: 2},
			},
			want: []int{1, 1, 2, 2},
		},
		{
			name: "empty",
			in:   nil,
			want: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DisplayNumbers(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("DisplayNumbers len = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("DisplayNumbers[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMatchesQuery(t *testing.T) {
	track := Track{Name: "Harvest Moon", Artist: "Neil Young", Album: "Harvest Moon"}

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"empty query matches", "", true},
		{"name substring", "harvest", true},
		{"artist substring", "neil", true},
		{"album substring", "MOON", true},
		{"no match", "zeppelin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesQuery(track, tt.query); got != tt.want {
				t.Errorf("MatchesQuery(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestFilterTracks_EmptyQueryKeepsIdentity(t *testing.T) {
	tracks := []Track{{Name: "a"}, {Name: "b"}}
	got := FilterTracks(tracks, "")
	if &got[0] != &tracks[0] {
		t.Error("FilterTracks with empty query should return the input slice")
	}
}

func TestFilterTracks_PreservesOrder(t *testing.T) {
	tracks := []Track{
		{Name: "Alpha", Artist: "X"},
		{Name: "Beta", Artist: "match"},
		{Name: "Gamma", Artist: "match"},
	}
	got := FilterTracks(tracks, "match")
	want := []string{"Beta", "Gamma"}
	if !reflect.DeepEqual(trackNames(got), want) {
		t.Errorf("FilterTracks = %v, want %v", trackNames(got), want)
	}
}

func trackNames(tracks []Track) []string {
	names := make([]string, len(tracks))
	for i, t := range tracks {
		names[i] = t.Name
	}
	return names
}
