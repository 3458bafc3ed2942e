// Package jellyfin is a minimal client for the Jellyfin music API. It
// covers the item queries, image URLs and file downloads the rest of
// the application needs, nothing more.
package jellyfin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cmarret/tideline/internal/music"
)

const requestTimeout = 30 * time.Second

// ErrNotConfigured is returned when no server URL or token is set.
var ErrNotConfigured = errors.New("jellyfin: server not configured")

// Config carries the connection settings for a Jellyfin server.
type Config struct {
	BaseURL    string
	Token      string
	UserID     string
	ClientName string
	DeviceID   string
	Version    string
}

// Client provides access to a Jellyfin server.
type Client struct {
	baseURL    string
	token      string
	userID     string
	clientName string
	deviceID   string
	version    string
	httpClient *http.Client

	// streamClient has no overall timeout so file downloads are not
	// cut off mid-transfer. Cancellation comes from the context.
	streamClient *http.Client
}

// NewClient creates a new Jellyfin API client.
func NewClient(cfg Config) *Client {
	if cfg.ClientName == "" {
		cfg.ClientName = "tideline"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		userID:     cfg.UserID,
		clientName: cfg.ClientName,
		deviceID:   cfg.DeviceID,
		version:    cfg.Version,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		streamClient: &http.Client{},
	}
}

// Configured reports whether the client has a server URL and token.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

// UserID returns the configured user id.
func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Emby-Token", c.token)
	req.Header.Set("Authorization", fmt.Sprintf(
		`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s", Token="%s"`,
		c.clientName, c.clientName, c.deviceID, c.version, c.token))
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// userItems queries /Users/{id}/Items and returns the envelope items.
func (c *Client) userItems(ctx context.Context, params url.Values) ([]Item, error) {
	var result itemsResponse
	if err := c.getJSON(ctx, "/Users/"+c.userID+"/Items", params, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Ping verifies the server is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.getJSON(ctx, "/System/Ping", nil, nil); err != nil {
		return fmt.Errorf("ping server: %w", err)
	}
	return nil
}

// Albums returns all music albums in the library, sorted by name.
func (c *Client) Albums(ctx context.Context, libraryID string) ([]music.Album, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "MusicAlbum")
	params.Set("Recursive", "true")
	params.Set("SortBy", "SortName")
	params.Set("SortOrder", "Ascending")
	if libraryID != "" {
		params.Set("ParentId", libraryID)
	}

	items, err := c.userItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch albums: %w", err)
	}
	return albumsFromItems(items), nil
}

// Artists returns all album artists in the library, sorted by name.
func (c *Client) Artists(ctx context.Context, libraryID string) ([]music.Artist, error) {
	params := url.Values{}
	params.Set("UserId", c.userID)
	params.Set("SortBy", "SortName")
	params.Set("SortOrder", "Ascending")
	if libraryID != "" {
		params.Set("ParentId", libraryID)
	}

	var result itemsResponse
	if err := c.getJSON(ctx, "/Artists/AlbumArtists", params, &result); err != nil {
		return nil, fmt.Errorf("fetch artists: %w", err)
	}
	return artistsFromItems(result.Items), nil
}

// Tracks returns audio tracks in the library. A non-empty query narrows
// the result with server-side name matching.
func (c *Client) Tracks(ctx context.Context, libraryID, query string) ([]music.Track, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "Audio")
	params.Set("Recursive", "true")
	params.Set("SortBy", "SortName")
	params.Set("SortOrder", "Ascending")
	if libraryID != "" {
		params.Set("ParentId", libraryID)
	}
	if query != "" {
		params.Set("SearchTerm", query)
	}

	items, err := c.userItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch tracks: %w", err)
	}
	return tracksFromItems(items), nil
}

// AlbumTracks returns the tracks of one album in disc and index order.
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]music.Track, error) {
	params := url.Values{}
	params.Set("ParentId", albumID)
	params.Set("IncludeItemTypes", "Audio")
	params.Set("SortBy", "ParentIndexNumber,IndexNumber,SortName")
	params.Set("SortOrder", "Ascending")

	items, err := c.userItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch album tracks: %w", err)
	}
	return tracksFromItems(items), nil
}

// AlbumsByArtist returns the albums credited to an album artist.
func (c *Client) AlbumsByArtist(ctx context.Context, artistID string) ([]music.Album, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "MusicAlbum")
	params.Set("Recursive", "true")
	params.Set("AlbumArtistIds", artistID)
	params.Set("SortBy", "ProductionYear,SortName")
	params.Set("SortOrder", "Ascending")

	items, err := c.userItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch artist albums: %w", err)
	}
	return albumsFromItems(items), nil
}

// ArtistTracks returns tracks by an artist. sortBy and sortOrder follow
// the Jellyfin field names ("PlayCount", "Descending"); empty values
// fall back to name order. limit <= 0 returns everything.
func (c *Client) ArtistTracks(ctx context.Context, artistID string, limit int, sortBy, sortOrder string) ([]music.Track, error) {
	if sortBy == "" {
		sortBy = "SortName"
	}
	if sortOrder == "" {
		sortOrder = "Ascending"
	}
	params := url.Values{}
	params.Set("IncludeItemTypes", "Audio")
	params.Set("Recursive", "true")
	params.Set("ArtistIds", artistID)
	params.Set("SortBy", sortBy)
	params.Set("SortOrder", sortOrder)
	if limit > 0 {
		params.Set("Limit", strconv.Itoa(limit))
	}

	items, err := c.userItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch artist tracks: %w", err)
	}
	return tracksFromItems(items), nil
}

// SearchAlbums returns albums matching the query.
func (c *Client) SearchAlbums(ctx context.Context, libraryID, query string) ([]music.Album, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "MusicAlbum")
	params.Set("Recursive", "true")
	params.Set("SearchTerm", query)
	if libraryID != "" {
		params.Set("ParentId", libraryID)
	}

	items, err := c.userItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search albums: %w", err)
	}
	return albumsFromItems(items), nil
}

// SearchArtists returns album artists matching the query.
func (c *Client) SearchArtists(ctx context.Context, libraryID, query string) ([]music.Artist, error) {
	params := url.Values{}
	params.Set("UserId", c.userID)
	params.Set("SearchTerm", query)
	if libraryID != "" {
		params.Set("ParentId", libraryID)
	}

	var result itemsResponse
	if err := c.getJSON(ctx, "/Artists/AlbumArtists", params, &result); err != nil {
		return nil, fmt.Errorf("search artists: %w", err)
	}
	return artistsFromItems(result.Items), nil
}

// SearchTracks returns tracks matching the query.
func (c *Client) SearchTracks(ctx context.Context, libraryID, query string) ([]music.Track, error) {
	return c.Tracks(ctx, libraryID, query)
}

// FavoriteTracks returns the user's favorite tracks.
func (c *Client) FavoriteTracks(ctx context.Context, libraryID string) ([]music.Track, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "Audio")
	params.Set("Recursive", "true")
	params.Set("Filters", "IsFavorite")
	params.Set("SortBy", "SortName")
	params.Set("SortOrder", "Ascending")
	if libraryID != "" {
		params.Set("ParentId", libraryID)
	}

	items, err := c.userItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch favorite tracks: %w", err)
	}
	return tracksFromItems(items), nil
}

// ImageURL builds the primary image URL for an item. It returns an
// empty string when the item has no image tag.
func (c *Client) ImageURL(itemID, tag string, maxWidth int) string {
	if c.baseURL == "" || itemID == "" || tag == "" {
		return ""
	}
	params := url.Values{}
	params.Set("tag", tag)
	if maxWidth > 0 {
		params.Set("maxWidth", strconv.Itoa(maxWidth))
	}
	return c.baseURL + "/Items/" + itemID + "/Images/Primary?" + params.Encode()
}

// ImageHeaders returns the headers required to fetch image URLs.
func (c *Client) ImageHeaders() map[string]string {
	return map[string]string{"X-Emby-Token": c.token}
}

// Download opens the original file stream for a track. The caller must
// close the reader. Size is -1 when the server does not announce one.
func (c *Client) Download(ctx context.Context, trackID string) (io.ReadCloser, int64, error) {
	if !c.Configured() {
		return nil, 0, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Items/"+trackID+"/Download", http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "*/*")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, 0, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, resp.ContentLength, nil
}
