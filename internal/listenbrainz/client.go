// Package listenbrainz submits listens to the ListenBrainz API using a
// user token.
package listenbrainz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.listenbrainz.org"

// submissionClient identifies this program in submitted listens.
const submissionClient = "tideline"

// ErrNotConfigured is returned when no user token is set.
var ErrNotConfigured = errors.New("listenbrainz not configured")

// Listen is one play to report.
type Listen struct {
	Artist        string
	Track         string
	Album         string
	ListenedAt    time.Time
	Duration      time.Duration
	MBRecordingID string
}

// Config holds the client settings.
type Config struct {
	Token   string
	BaseURL string // defaults to the public API
}

// Client talks to the ListenBrainz HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. The client is usable without a token but every
// call returns ErrNotConfigured until one is set.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether a user token is set.
func (c *Client) Configured() bool {
	return c.token != ""
}

type submission struct {
	ListenType string          `json:"listen_type"`
	Payload    []listenPayload `json:"payload"`
}

type listenPayload struct {
	ListenedAt int64         `json:"listened_at,omitempty"`
	Metadata   trackMetadata `json:"track_metadata"`
}

type trackMetadata struct {
	ArtistName  string          `json:"artist_name"`
	TrackName   string          `json:"track_name"`
	ReleaseName string          `json:"release_name,omitempty"`
	Additional  *additionalInfo `json:"additional_info,omitempty"`
}

type additionalInfo struct {
	DurationMS       int64  `json:"duration_ms,omitempty"`
	RecordingMBID    string `json:"recording_mbid,omitempty"`
	SubmissionClient string `json:"submission_client,omitempty"`
}

func metadataFor(l Listen) trackMetadata {
	info := &additionalInfo{SubmissionClient: submissionClient}
	if l.Duration > 0 {
		info.DurationMS = l.Duration.Milliseconds()
	}
	if l.MBRecordingID != "" {
		info.RecordingMBID = l.MBRecordingID
	}
	return trackMetadata{
		ArtistName:  l.Artist,
		TrackName:   l.Track,
		ReleaseName: l.Album,
		Additional:  info,
	}
}

// SubmitListen reports a completed play.
func (c *Client) SubmitListen(ctx context.Context, l Listen) error {
	payload := listenPayload{ListenedAt: l.ListenedAt.Unix(), Metadata: metadataFor(l)}
	return c.submit(ctx, submission{ListenType: "single", Payload: []listenPayload{payload}})
}

// PlayingNow reports the track currently playing. Playing-now listens
// carry no timestamp.
func (c *Client) PlayingNow(ctx context.Context, l Listen) error {
	payload := listenPayload{Metadata: metadataFor(l)}
	return c.submit(ctx, submission{ListenType: "playing_now", Payload: []listenPayload{payload}})
}

func (c *Client) submit(ctx context.Context, sub submission) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal listen: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/1/submit-listens", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// ValidateToken checks the configured token against the API and returns
// the account name it belongs to.
func (c *Client) ValidateToken(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/1/validate-token", http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result struct {
		Valid    bool   `json:"valid"`
		UserName string `json:"user_name"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !result.Valid {
		return "", fmt.Errorf("token rejected: %s", result.Message)
	}
	return result.UserName, nil
}
