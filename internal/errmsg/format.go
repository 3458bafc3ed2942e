// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Resolver operations
	OpResolveAlbums       Op = "load albums"
	OpResolveArtists      Op = "load artists"
	OpResolveTracks       Op = "load tracks"
	OpResolveAlbumTracks  Op = "load album tracks"
	OpResolveArtistTracks Op = "load artist tracks"
	OpSearch              Op = "search library"

	// Server operations
	OpServerConnect Op = "connect to server"
	OpServerProbe   Op = "check server reachability"

	// Download operations
	OpDownloadQueue  Op = "queue download"
	OpDownloadDelete Op = "delete download"
	OpDownloadRetry  Op = "retry download"
	OpDownloadClear  Op = "clear downloads"
	OpDownloadVerify Op = "verify downloaded files"
	OpDownloadRun    Op = "run downloads"

	// Mode operations
	OpOfflineToggle Op = "toggle offline mode"

	// Listen reporting
	OpListenSubmit Op = "submit listen"
	OpListenFlush  Op = "flush pending listens"
	OpLastfmAuth   Op = "link last.fm account"

	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpQueueAdd      Op = "add to queue"

	// Artwork
	OpArtworkLoad Op = "load artwork"

	// Initialization
	OpInitialize Op = "initialize application"
	OpConfigLoad Op = "load configuration"
	OpStateOpen  Op = "open state database"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
