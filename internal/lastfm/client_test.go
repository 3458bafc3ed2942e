package lastfm

import (
	"strings"
	"testing"
	"time"
)

func TestGetAuthURL(t *testing.T) {
	c := New("key-123", "secret-456")
	got := c.GetAuthURL("token-789")

	if !strings.Contains(got, "api_key=key-123") {
		t.Errorf("auth URL %q missing api key", got)
	}
	if !strings.Contains(got, "token=token-789") {
		t.Errorf("auth URL %q missing token", got)
	}
	if !strings.HasPrefix(got, "https://www.last.fm/api/auth/") {
		t.Errorf("auth URL %q has wrong base", got)
	}
}

func TestIsAuthenticated(t *testing.T) {
	c := New("key", "secret")
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true before a session is set")
	}

	c.SetSessionKey("session-1")
	if !c.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after SetSessionKey")
	}
	if got := c.SessionKey(); got != "session-1" {
		t.Errorf("SessionKey() = %q, want session-1", got)
	}
}

func TestScrobble_RequiresSession(t *testing.T) {
	c := New("key", "secret")
	track := ScrobbleTrack{Artist: "Driftwood", Track: "Undertow", Timestamp: time.Now()}

	if err := c.Scrobble(track); err != ErrNotAuthenticated {
		t.Errorf("Scrobble() error = %v, want ErrNotAuthenticated", err)
	}
	if err := c.UpdateNowPlaying(track); err != ErrNotAuthenticated {
		t.Errorf("UpdateNowPlaying() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestScrobbleParams(t *testing.T) {
	track := ScrobbleTrack{
		Artist:        "Driftwood",
		Track:         "Undertow",
		Album:         "Saltwater",
		Duration:      3 * time.Minute,
		Timestamp:     time.Unix(1700000000, 0),
		MBRecordingID: "mb-1",
	}

	params := scrobbleParams(track, true)
	if params["artist"] != "Driftwood" || params["track"] != "Undertow" {
		t.Errorf("params = %v", params)
	}
	if params["timestamp"] != int64(1700000000) {
		t.Errorf("timestamp = %v, want unix seconds", params["timestamp"])
	}
	if params["album"] != "Saltwater" {
		t.Errorf("album = %v", params["album"])
	}
	if params["duration"] != 180 {
		t.Errorf("duration = %v, want 180", params["duration"])
	}
	if params["mbid"] != "mb-1" {
		t.Errorf("mbid = %v", params["mbid"])
	}

	nowPlaying := scrobbleParams(track, false)
	if _, present := nowPlaying["timestamp"]; present {
		t.Error("now playing params carry a timestamp")
	}

	bare := scrobbleParams(ScrobbleTrack{Artist: "A", Track: "B"}, false)
	for _, key := range []string{"album", "duration", "mbid"} {
		if _, present := bare[key]; present {
			t.Errorf("bare params carry %q", key)
		}
	}
}
