// Package resolver decides, per view and per connectivity mode, where
// content comes from: the bundled demo catalog, the local download
// store, or the Jellyfin server. The decision order is fixed: demo mode
// wins, then the offline gate, then the server.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmarret/tideline/internal/connectivity"
	"github.com/cmarret/tideline/internal/music"
)

// ErrRemoteUnavailable guards the server branch: it is returned if a
// resolve reaches the remote path while the network flag is down, which
// the source decision normally makes impossible.
var ErrRemoteUnavailable = errors.New("resolver: remote source unavailable")

// Source identifies where a resolved list came from.
type Source int

const (
	SourceDemo Source = iota
	SourceDownloads
	SourceServer
)

func (s Source) String() string {
	switch s {
	case SourceDemo:
		return "demo"
	case SourceDownloads:
		return "downloads"
	case SourceServer:
		return "server"
	default:
		return "unknown"
	}
}

// Kind identifies a resolvable view.
type Kind int

const (
	KindAlbums Kind = iota
	KindArtists
	KindTracks
	KindAlbumTracks
	KindArtistTracks
	KindFavorites
)

func (k Kind) String() string {
	switch k {
	case KindAlbums:
		return "albums"
	case KindArtists:
		return "artists"
	case KindTracks:
		return "tracks"
	case KindAlbumTracks:
		return "album-tracks"
	case KindArtistTracks:
		return "artist-tracks"
	case KindFavorites:
		return "favorites"
	default:
		return "unknown"
	}
}

// Result carries a resolved list together with its source, so callers
// can tell degraded data from fresh data.
type Result[T any] struct {
	Items  []T
	Source Source
}

// Catalog is the query surface of a remote (or bundled) music library.
// Implemented by the Jellyfin client and the demo catalog.
type Catalog interface {
	Albums(ctx context.Context, libraryID string) ([]music.Album, error)
	Artists(ctx context.Context, libraryID string) ([]music.Artist, error)
	Tracks(ctx context.Context, libraryID, query string) ([]music.Track, error)
	AlbumTracks(ctx context.Context, albumID string) ([]music.Track, error)
	ArtistTracks(ctx context.Context, artistID string, limit int, sortBy, sortOrder string) ([]music.Track, error)
	FavoriteTracks(ctx context.Context, libraryID string) ([]music.Track, error)
}

// DownloadStore is the completed-download surface the offline source
// reads from.
type DownloadStore interface {
	CompletedTracks() ([]music.Track, error)
	CompletedTracksByAlbumName(name string) ([]music.Track, error)
	CompletedTracksByArtistName(name string) ([]music.Track, error)
}

// Modes exposes the connectivity flags the source decision reads.
type Modes interface {
	Snapshot() connectivity.Snapshot
}

// Resolver routes view resolves to the right source.
type Resolver struct {
	server    Catalog
	store     DownloadStore
	modes     Modes
	libraryID string

	// demo, when set, short-circuits every resolve to the bundled
	// catalog.
	demo Catalog
}

// New creates a resolver over the server catalog and download store.
func New(server Catalog, store DownloadStore, modes Modes, libraryID string) *Resolver {
	return &Resolver{
		server:    server,
		store:     store,
		modes:     modes,
		libraryID: libraryID,
	}
}

// UseDemo switches the resolver into demo mode: every resolve is served
// from the given catalog, regardless of connectivity.
func (r *Resolver) UseDemo(demo Catalog) {
	r.demo = demo
}

// Source reports which source the next resolve would use.
func (r *Resolver) Source() Source {
	if r.demo != nil {
		return SourceDemo
	}
	snap := r.modes.Snapshot()
	if snap.OfflineMode || !snap.NetworkAvailable {
		return SourceDownloads
	}
	return SourceServer
}

// remote returns the server catalog after re-asserting the network
// gate. The source decision makes a down-network arrival impossible
// through the public methods, so this is a guard, not a branch.
func (r *Resolver) remote() (Catalog, error) {
	if !r.modes.Snapshot().NetworkAvailable {
		return nil, ErrRemoteUnavailable
	}
	return r.server, nil
}

// Albums resolves the album list for the current mode.
func (r *Resolver) Albums(ctx context.Context) (Result[music.Album], error) {
	switch src := r.Source(); src {
	case SourceDemo:
		albums, err := r.demo.Albums(ctx, r.libraryID)
		return Result[music.Album]{Items: albums, Source: src}, err
	case SourceDownloads:
		tracks, err := r.store.CompletedTracks()
		if err != nil {
			return Result[music.Album]{}, fmt.Errorf("resolve albums from downloads: %w", err)
		}
		return Result[music.Album]{Items: music.GroupAlbums(tracks), Source: src}, nil
	case SourceServer:
		server, err := r.remote()
		if err != nil {
			return Result[music.Album]{}, err
		}
		albums, err := server.Albums(ctx, r.libraryID)
		if err != nil {
			return Result[music.Album]{}, fmt.Errorf("resolve albums: %w", err)
		}
		return Result[music.Album]{Items: albums, Source: src}, nil
	default:
		return Result[music.Album]{}, fmt.Errorf("unhandled source %v", r.Source())
	}
}

// Artists resolves the artist list for the current mode.
func (r *Resolver) Artists(ctx context.Context) (Result[music.Artist], error) {
	switch src := r.Source(); src {
	case SourceDemo:
		artists, err := r.demo.Artists(ctx, r.libraryID)
		return Result[music.Artist]{Items: artists, Source: src}, err
	case SourceDownloads:
		tracks, err := r.store.CompletedTracks()
		if err != nil {
			return Result[music.Artist]{}, fmt.Errorf("resolve artists from downloads: %w", err)
		}
		return Result[music.Artist]{Items: music.GroupArtists(tracks), Source: src}, nil
	case SourceServer:
		server, err := r.remote()
		if err != nil {
			return Result[music.Artist]{}, err
		}
		artists, err := server.Artists(ctx, r.libraryID)
		if err != nil {
			return Result[music.Artist]{}, fmt.Errorf("resolve artists: %w", err)
		}
		return Result[music.Artist]{Items: artists, Source: src}, nil
	default:
		return Result[music.Artist]{}, fmt.Errorf("unhandled source %v", r.Source())
	}
}

// Tracks resolves the track list, optionally narrowed by a query. The
// offline match is a case-insensitive substring check against track,
// artist and album names.
func (r *Resolver) Tracks(ctx context.Context, query string) (Result[music.Track], error) {
	switch src := r.Source(); src {
	case SourceDemo:
		tracks, err := r.demo.Tracks(ctx, r.libraryID, query)
		return Result[music.Track]{Items: tracks, Source: src}, err
	case SourceDownloads:
		tracks, err := r.store.CompletedTracks()
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve tracks from downloads: %w", err)
		}
		return Result[music.Track]{Items: music.FilterTracks(tracks, query), Source: src}, nil
	case SourceServer:
		server, err := r.remote()
		if err != nil {
			return Result[music.Track]{}, err
		}
		tracks, err := server.Tracks(ctx, r.libraryID, query)
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve tracks: %w", err)
		}
		return Result[music.Track]{Items: tracks, Source: src}, nil
	default:
		return Result[music.Track]{}, fmt.Errorf("unhandled source %v", r.Source())
	}
}

// AlbumTracks resolves one album's tracks. Offline the album is keyed
// by name, since grouped offline albums may carry synthesized ids; an
// empty name maps to the unknown-album group. Every source comes back
// in disc, index, name order.
func (r *Resolver) AlbumTracks(ctx context.Context, albumID, albumName string) (Result[music.Track], error) {
	switch src := r.Source(); src {
	case SourceDemo:
		tracks, err := r.demo.AlbumTracks(ctx, albumID)
		return Result[music.Track]{Items: tracks, Source: src}, err
	case SourceDownloads:
		name := albumName
		if name == "" {
			name = music.UnknownAlbum
		}
		tracks, err := r.store.CompletedTracksByAlbumName(name)
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve album tracks from downloads: %w", err)
		}
		music.SortTracks(tracks)
		return Result[music.Track]{Items: tracks, Source: src}, nil
	case SourceServer:
		server, err := r.remote()
		if err != nil {
			return Result[music.Track]{}, err
		}
		tracks, err := server.AlbumTracks(ctx, albumID)
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve album tracks: %w", err)
		}
		music.SortTracks(tracks)
		return Result[music.Track]{Items: tracks, Source: src}, nil
	default:
		return Result[music.Track]{}, fmt.Errorf("unhandled source %v", r.Source())
	}
}

// ArtistTracks resolves an artist's tracks. The server honors sortBy
// and sortOrder (play-count orderings and the like); offline falls back
// to the artist's completed downloads in disc, index, name order, and
// only the limit is applied.
func (r *Resolver) ArtistTracks(ctx context.Context, artistID, artistName string, limit int, sortBy, sortOrder string) (Result[music.Track], error) {
	switch src := r.Source(); src {
	case SourceDemo:
		tracks, err := r.demo.ArtistTracks(ctx, artistID, limit, sortBy, sortOrder)
		return Result[music.Track]{Items: tracks, Source: src}, err
	case SourceDownloads:
		tracks, err := r.store.CompletedTracksByArtistName(artistName)
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve artist tracks from downloads: %w", err)
		}
		music.SortTracks(tracks)
		if limit > 0 && len(tracks) > limit {
			tracks = tracks[:limit]
		}
		return Result[music.Track]{Items: tracks, Source: src}, nil
	case SourceServer:
		server, err := r.remote()
		if err != nil {
			return Result[music.Track]{}, err
		}
		tracks, err := server.ArtistTracks(ctx, artistID, limit, sortBy, sortOrder)
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve artist tracks: %w", err)
		}
		return Result[music.Track]{Items: tracks, Source: src}, nil
	default:
		return Result[music.Track]{}, fmt.Errorf("unhandled source %v", r.Source())
	}
}

// FavoriteTracks resolves the favorites list. Offline it narrows to
// favorite tracks that are actually downloaded.
func (r *Resolver) FavoriteTracks(ctx context.Context) (Result[music.Track], error) {
	switch src := r.Source(); src {
	case SourceDemo:
		tracks, err := r.demo.FavoriteTracks(ctx, r.libraryID)
		return Result[music.Track]{Items: tracks, Source: src}, err
	case SourceDownloads:
		tracks, err := r.store.CompletedTracks()
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve favorites from downloads: %w", err)
		}
		favorites := make([]music.Track, 0, len(tracks))
		for _, t := range tracks {
			if t.Favorite {
				favorites = append(favorites, t)
			}
		}
		return Result[music.Track]{Items: favorites, Source: src}, nil
	case SourceServer:
		server, err := r.remote()
		if err != nil {
			return Result[music.Track]{}, err
		}
		tracks, err := server.FavoriteTracks(ctx, r.libraryID)
		if err != nil {
			return Result[music.Track]{}, fmt.Errorf("resolve favorites: %w", err)
		}
		return Result[music.Track]{Items: tracks, Source: src}, nil
	default:
		return Result[music.Track]{}, fmt.Errorf("unhandled source %v", r.Source())
	}
}
