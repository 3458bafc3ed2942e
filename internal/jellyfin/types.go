package jellyfin

import (
	"strings"
	"time"

	"github.com/cmarret/tideline/internal/music"
)

// itemsResponse is the standard Jellyfin query envelope.
type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// Item is the subset of a Jellyfin BaseItemDto this client consumes.
type Item struct {
	ID                   string            `json:"Id"`
	Name                 string            `json:"Name"`
	Type                 string            `json:"Type"`
	Album                string            `json:"Album"`
	AlbumID              string            `json:"AlbumId"`
	AlbumArtist          string            `json:"AlbumArtist"`
	AlbumPrimaryImageTag string            `json:"AlbumPrimaryImageTag"`
	Artists              []string          `json:"Artists"`
	ArtistItems          []NameID          `json:"ArtistItems"`
	IndexNumber          int               `json:"IndexNumber"`
	ParentIndexNumber    int               `json:"ParentIndexNumber"`
	ProductionYear       int               `json:"ProductionYear"`
	RunTimeTicks         int64             `json:"RunTimeTicks"`
	ImageTags            map[string]string `json:"ImageTags"`
	ProviderIDs          map[string]string `json:"ProviderIds"`
	UserData             *UserData         `json:"UserData"`
	ChildCount           int               `json:"ChildCount"`
	AlbumCount           int               `json:"AlbumCount"`
	SongCount            int               `json:"SongCount"`
	Container            string            `json:"Container"`
}

// NameID is an id/name pair used for nested artist references.
type NameID struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// UserData carries the per-user flags attached to an item.
type UserData struct {
	IsFavorite bool `json:"IsFavorite"`
	PlayCount  int  `json:"PlayCount"`
}

// durationFromTicks converts Jellyfin runtime ticks (100ns units) to a
// duration.
func durationFromTicks(ticks int64) time.Duration {
	return time.Duration(ticks) * 100 * time.Nanosecond
}

func trackFromItem(it Item) music.Track {
	t := music.Track{
		ID:            it.ID,
		Name:          it.Name,
		Album:         it.Album,
		AlbumID:       it.AlbumID,
		AlbumImageTag: it.AlbumPrimaryImageTag,
		DiscNumber:    it.ParentIndexNumber,
		IndexNumber:   it.IndexNumber,
		Duration:      durationFromTicks(it.RunTimeTicks),
		ProviderIDs:   it.ProviderIDs,
	}
	if len(it.Artists) > 0 {
		t.Artist = strings.Join(it.Artists, ", ")
	} else {
		t.Artist = it.AlbumArtist
	}
	for _, a := range it.ArtistItems {
		if a.ID != "" {
			t.ArtistIDs = append(t.ArtistIDs, a.ID)
		}
	}
	if t.AlbumImageTag == "" {
		t.AlbumImageTag = it.ImageTags["Primary"]
	}
	if it.UserData != nil {
		t.Favorite = it.UserData.IsFavorite
	}
	return t
}

func albumFromItem(it Item) music.Album {
	a := music.Album{
		ID:         it.ID,
		Name:       it.Name,
		Artist:     it.AlbumArtist,
		Year:       it.ProductionYear,
		ImageTag:   it.ImageTags["Primary"],
		TrackCount: it.ChildCount,
	}
	if a.Artist == "" && len(it.Artists) > 0 {
		a.Artist = strings.Join(it.Artists, ", ")
	}
	return a
}

func artistFromItem(it Item) music.Artist {
	return music.Artist{
		ID:         it.ID,
		Name:       it.Name,
		ImageTag:   it.ImageTags["Primary"],
		AlbumCount: it.AlbumCount,
		SongCount:  it.SongCount,
	}
}

func tracksFromItems(items []Item) []music.Track {
	tracks := make([]music.Track, len(items))
	for i, it := range items {
		tracks[i] = trackFromItem(it)
	}
	return tracks
}

func albumsFromItems(items []Item) []music.Album {
	albums := make([]music.Album, len(items))
	for i, it := range items {
		albums[i] = albumFromItem(it)
	}
	return albums
}

func artistsFromItems(items []Item) []music.Artist {
	artists := make([]music.Artist, len(items))
	for i, it := range items {
		artists[i] = artistFromItem(it)
	}
	return artists
}
