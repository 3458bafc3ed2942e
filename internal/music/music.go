// Package music defines the domain entities shared by every content
// source: the Jellyfin server, the local download store and the demo
// catalog. Values are immutable once produced by a source.
package music

import (
	"sort"
	"strings"
	"time"
)

// UnknownAlbum is the album name used when a track carries none.
const UnknownAlbum = "Unknown Album"

// Track is a single playable item.
type Track struct {
	ID            string
	Name          string
	Artist        string   // display artist
	ArtistIDs     []string // server artist ids, primary first
	AlbumID       string
	Album         string
	AlbumImageTag string
	DiscNumber    int // 0 when the server reports none
	IndexNumber   int // 0 when the server reports none
	Duration      time.Duration
	Favorite      bool
	ProviderIDs   map[string]string // external ids, e.g. "MusicBrainzTrack"
}

type Album struct {
	ID         string
	Name       string
	Artist     string
	Year       int // 0 when unknown
	ImageTag   string
	TrackCount int
}

type Artist struct {
	ID         string
	Name       string
	ImageTag   string
	AlbumCount int
	SongCount  int
}

// SortTracks orders tracks for an album or artist listing: disc number
// first, then server index, then name. Unknown discs and indexes sort
// as zero. The sort is stable so equal keys keep their input order.
func SortTracks(tracks []Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if a.DiscNumber != b.DiscNumber {
			return a.DiscNumber < b.DiscNumber
		}
		if a.IndexNumber != b.IndexNumber {
			return a.IndexNumber < b.IndexNumber
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// EffectiveTrackNumber returns the server-reported index when present
// and positive, else the caller-supplied fallback position.
func EffectiveTrackNumber(t Track, fallback int) int {
	if t.IndexNumber > 0 {
		return t.IndexNumber
	}
	return fallback
}

// DisplayNumbers computes the number shown next to each track, in the
// given display order. Tracks without a server index are numbered by
// their position among the unnumbered tracks of the same disc: disc-1
// indexes [none, 3, none] yield [1, 3, 2].
func DisplayNumbers(tracks []Track) []int {
	nums := make([]int, len(tracks))
	unnumbered := make(map[int]int) // disc -> index-less tracks seen so far
	for i, t := range tracks {
		if t.IndexNumber > 0 {
			nums[i] = t.IndexNumber
			continue
		}
		unnumbered[t.DiscNumber]++
		nums[i] = unnumbered[t.DiscNumber]
	}
	return nums
}

// GroupAlbums builds album entries from downloaded tracks, one entry
// per distinct album name. Tracks without an album name group under
// UnknownAlbum. The first track of each group supplies the
// representative id (its album id, or its own id when absent), artist
// and image tag.
func GroupAlbums(tracks []Track) []Album {
	index := make(map[string]int)
	var albums []Album
	for _, t := range tracks {
		name := t.Album
		if name == "" {
			name = UnknownAlbum
		}
		if i, ok := index[name]; ok {
			albums[i].TrackCount++
			continue
		}
		id := t.AlbumID
		if id == "" {
			id = t.ID
		}
		index[name] = len(albums)
		albums = append(albums, Album{
			ID:         id,
			Name:       name,
			Artist:     t.Artist,
			ImageTag:   t.AlbumImageTag,
			TrackCount: 1,
		})
	}
	return albums
}

// GroupArtists builds artist entries from downloaded tracks, one entry
// per distinct display name. Identity is the first server artist id
// carried by the group's first track, falling back to the name itself,
// so two artists sharing a display name merge while offline.
func GroupArtists(tracks []Track) []Artist {
	index := make(map[string]int)
	albumsSeen := make(map[string]map[string]struct{})
	var artists []Artist
	for _, t := range tracks {
		name := t.Artist
		if _, ok := index[name]; !ok {
			id := name
			if len(t.ArtistIDs) > 0 && t.ArtistIDs[0] != "" {
				id = t.ArtistIDs[0]
			}
			index[name] = len(artists)
			artists = append(artists, Artist{ID: id, Name: name})
			albumsSeen[name] = make(map[string]struct{})
		}
		album := t.Album
		if album == "" {
			album = UnknownAlbum
		}
		i := index[name]
		artists[i].SongCount++
		albumsSeen[name][album] = struct{}{}
		artists[i].AlbumCount = len(albumsSeen[name])
	}
	return artists
}

// MatchesQuery reports whether a track matches a free-text query using
// case-insensitive substring match against name, artist and album. An
// empty query matches everything.
func MatchesQuery(t Track, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Name), q) ||
		strings.Contains(strings.ToLower(t.Artist), q) ||
		strings.Contains(strings.ToLower(t.Album), q)
}

// FilterTracks returns the tracks matching query in their input order.
// An empty query returns the input slice unchanged.
func FilterTracks(tracks []Track, query string) []Track {
	if query == "" {
		return tracks
	}
	var out []Track
	for _, t := range tracks {
		if MatchesQuery(t, query) {
			out = append(out, t)
		}
	}
	return out
}
