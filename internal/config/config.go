package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Demo     bool   `koanf:"demo"`      // serve the bundled demo catalog, no server or downloads
	LogLevel string `koanf:"log_level"` // "debug", "info", "warn", "error" (default: "info")

	// Jellyfin server connection
	Server ServerConfig `koanf:"server"`

	// Local download storage
	Downloads DownloadsConfig `koanf:"downloads"`

	// ListenBrainz listen submission (enabled when configured)
	ListenBrainz ListenBrainzConfig `koanf:"listenbrainz"`

	// Last.fm scrobbling (enabled when configured)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Artwork fetching and palette extraction
	Artwork ArtworkConfig `koanf:"artwork"`
}

// ServerConfig holds the Jellyfin connection settings.
type ServerConfig struct {
	URL        string `koanf:"url"`         // e.g., "http://localhost:8096"
	Token      string `koanf:"token"`       // API key or access token
	UserID     string `koanf:"user_id"`     // Jellyfin user id the queries run as
	LibraryID  string `koanf:"library_id"`  // music library to browse (empty: all)
	ClientName string `koanf:"client_name"` // reported in the auth header
}

// DownloadsConfig holds local download storage settings.
type DownloadsConfig struct {
	Dir           string `koanf:"dir"`            // where audio files land (default: XDG data dir)
	MaxConcurrent int    `koanf:"max_concurrent"` // parallel transfers (1-8, default: 3)
}

// ListenBrainzConfig holds ListenBrainz submission configuration.
type ListenBrainzConfig struct {
	Token string `koanf:"token"`
}

// LastfmConfig holds Last.fm scrobbling configuration.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// ArtworkConfig holds artwork fetching configuration.
type ArtworkConfig struct {
	MaxWidth int `koanf:"max_width"` // requested image width in pixels (default: 300)
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Normalize server URL (remove trailing slash)
	cfg.Server.URL = strings.TrimSuffix(cfg.Server.URL, "/")

	// Expand ~ in downloads dir
	if cfg.Downloads.Dir != "" {
		cfg.Downloads.Dir = expandPath(cfg.Downloads.Dir)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/tideline/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tideline", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasServerConfig returns true if a Jellyfin server is configured.
func (c *Config) HasServerConfig() bool {
	return c.Server.URL != "" && c.Server.Token != "" && c.Server.UserID != ""
}

// HasListenBrainzConfig returns true if ListenBrainz submission is configured.
func (c *Config) HasListenBrainzConfig() bool {
	return c.ListenBrainz.Token != ""
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// GetDownloadsConfig returns the downloads configuration with defaults applied.
func (c *Config) GetDownloadsConfig() DownloadsConfig {
	cfg := c.Downloads

	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(xdg.DataHome, "tideline", "music")
	}
	if cfg.MaxConcurrent <= 0 || cfg.MaxConcurrent > 8 {
		cfg.MaxConcurrent = 3
	}

	return cfg
}

// GetArtworkConfig returns the artwork configuration with defaults applied.
func (c *Config) GetArtworkConfig() ArtworkConfig {
	cfg := c.Artwork

	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 300
	}

	return cfg
}

// GetLogLevel returns the configured log level, defaulting to "info".
func (c *Config) GetLogLevel() string {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return c.LogLevel
	}
	return "info"
}
