// Package demo bundles a small static music catalog served in place of
// a live Jellyfin server when demo mode is enabled. No network and no
// download store are involved.
package demo

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cmarret/tideline/internal/music"
)

// Catalog holds the bundled dataset. The slices are built once and
// treated as immutable, so repeated calls return identical references
// and downstream identity-keyed caches stay warm.
type Catalog struct {
	albums  []music.Album
	artists []music.Artist
	tracks  []music.Track
}

func New() *Catalog {
	c := &Catalog{}
	c.build()
	return c
}

// Albums returns every demo album. The library id is ignored.
func (c *Catalog) Albums(_ context.Context, _ string) ([]music.Album, error) {
	return c.albums, nil
}

// Artists returns every demo artist.
func (c *Catalog) Artists(_ context.Context, _ string) ([]music.Artist, error) {
	return c.artists, nil
}

// Tracks returns the demo tracks, optionally narrowed by a query.
func (c *Catalog) Tracks(_ context.Context, _ string, query string) ([]music.Track, error) {
	return music.FilterTracks(c.tracks, query), nil
}

// AlbumTracks returns the tracks of one album in disc and index order.
func (c *Catalog) AlbumTracks(_ context.Context, albumID string) ([]music.Track, error) {
	var tracks []music.Track
	for _, t := range c.tracks {
		if t.AlbumID == albumID {
			tracks = append(tracks, t)
		}
	}
	music.SortTracks(tracks)
	return tracks, nil
}

// ArtistTracks returns tracks credited to an artist in name order. The
// demo set has no play counts, so sortBy is ignored beyond the order
// direction. limit <= 0 returns everything.
func (c *Catalog) ArtistTracks(_ context.Context, artistID string, limit int, _ string, sortOrder string) ([]music.Track, error) {
	var tracks []music.Track
	for _, t := range c.tracks {
		if hasArtist(t, artistID) {
			tracks = append(tracks, t)
		}
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return strings.ToLower(tracks[i].Name) < strings.ToLower(tracks[j].Name)
	})
	if strings.EqualFold(sortOrder, "Descending") {
		for i, j := 0, len(tracks)-1; i < j; i, j = i+1, j-1 {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		}
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// AlbumsByArtist returns the demo albums credited to an artist.
func (c *Catalog) AlbumsByArtist(_ context.Context, artistID string) ([]music.Album, error) {
	var name string
	for _, a := range c.artists {
		if a.ID == artistID {
			name = a.Name
			break
		}
	}
	var albums []music.Album
	for _, a := range c.albums {
		if a.Artist == name && name != "" {
			albums = append(albums, a)
		}
	}
	return albums, nil
}

// FavoriteTracks returns the demo tracks flagged as favorites.
func (c *Catalog) FavoriteTracks(_ context.Context, _ string) ([]music.Track, error) {
	var tracks []music.Track
	for _, t := range c.tracks {
		if t.Favorite {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

func hasArtist(t music.Track, artistID string) bool {
	for _, id := range t.ArtistIDs {
		if id == artistID {
			return true
		}
	}
	return false
}

func (c *Catalog) build() {
	c.artists = []music.Artist{
		{ID: "demo-artist-driftwood", Name: "The Driftwood Choir", AlbumCount: 2, SongCount: 9},
		{ID: "demo-artist-harbor", Name: "Neon Harbor", AlbumCount: 1, SongCount: 3},
		{ID: "demo-artist-voss", Name: "Mara Voss", AlbumCount: 1, SongCount: 2},
	}

	c.albums = []music.Album{
		{ID: "demo-album-arcade", Name: "Arcade Coastline", Artist: "Neon Harbor", Year: 2021, TrackCount: 3},
		{ID: "demo-album-glasshouse", Name: "Glasshouse Maps", Artist: "Mara Voss", Year: 2020, TrackCount: 2},
		{ID: "demo-album-lowtide", Name: "Low Tide Hymns", Artist: "The Driftwood Choir", Year: 2022, TrackCount: 4},
		{ID: "demo-album-saltwater", Name: "Saltwater Lines", Artist: "The Driftwood Choir", Year: 2019, TrackCount: 5},
	}

	driftwood := []string{"demo-artist-driftwood"}
	harbor := []string{"demo-artist-harbor"}
	voss := []string{"demo-artist-voss"}

	c.tracks = []music.Track{
		// Saltwater Lines, single disc
		demoTrack("demo-track-sl1", "Undertow", "The Driftwood Choir", driftwood, "demo-album-saltwater", "Saltwater Lines", 1, 1, 254, true),
		demoTrack("demo-track-sl2", "Mooring", "The Driftwood Choir", driftwood, "demo-album-saltwater", "Saltwater Lines", 1, 2, 198, false),
		demoTrack("demo-track-sl3", "Salt and Signal", "The Driftwood Choir", driftwood, "demo-album-saltwater", "Saltwater Lines", 1, 3, 312, false),
		demoTrack("demo-track-sl4", "Ballast", "The Driftwood Choir", driftwood, "demo-album-saltwater", "Saltwater Lines", 1, 4, 221, false),
		demoTrack("demo-track-sl5", "Nightswim", "The Driftwood Choir", driftwood, "demo-album-saltwater", "Saltwater Lines", 1, 5, 276, true),

		// Low Tide Hymns, two discs, one track without a server index
		demoTrack("demo-track-lt1", "Anchorage", "The Driftwood Choir", driftwood, "demo-album-lowtide", "Low Tide Hymns", 1, 1, 243, false),
		demoTrack("demo-track-lt2", "Breakwater", "The Driftwood Choir", driftwood, "demo-album-lowtide", "Low Tide Hymns", 1, 2, 187, false),
		demoTrack("demo-track-lt3", "Spume", "The Driftwood Choir", driftwood, "demo-album-lowtide", "Low Tide Hymns", 2, 1, 265, false),
		demoTrack("demo-track-lt4", "Wrack Line", "The Driftwood Choir", driftwood, "demo-album-lowtide", "Low Tide Hymns", 2, 0, 301, false),

		// Arcade Coastline
		demoTrack("demo-track-ac1", "Boardwalk Static", "Neon Harbor", harbor, "demo-album-arcade", "Arcade Coastline", 1, 1, 233, false),
		demoTrack("demo-track-ac2", "Pier Lights", "Neon Harbor", harbor, "demo-album-arcade", "Arcade Coastline", 1, 2, 208, true),
		demoTrack("demo-track-ac3", "Token Economy", "Neon Harbor", harbor, "demo-album-arcade", "Arcade Coastline", 1, 3, 249, false),

		// Glasshouse Maps
		demoTrack("demo-track-gm1", "Fernery", "Mara Voss", voss, "demo-album-glasshouse", "Glasshouse Maps", 1, 1, 284, false),
		demoTrack("demo-track-gm2", "Condensation", "Mara Voss", voss, "demo-album-glasshouse", "Glasshouse Maps", 1, 2, 322, false),
	}
}

func demoTrack(id, name, artist string, artistIDs []string, albumID, album string, disc, index, seconds int, favorite bool) music.Track {
	return music.Track{
		ID:          id,
		Name:        name,
		Artist:      artist,
		ArtistIDs:   artistIDs,
		AlbumID:     albumID,
		Album:       album,
		DiscNumber:  disc,
		IndexNumber: index,
		Duration:    time.Duration(seconds) * time.Second,
		Favorite:    favorite,
	}
}
