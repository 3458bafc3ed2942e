package downloads

import (
	"os"
	"path/filepath"
	"strings"
)

// RemoveFiles deletes the record's audio file from disk. When the album
// folder then holds nothing but the shared cover image, the cover and
// the folder are removed too. Missing files are not an error.
func RemoveFiles(rec *Record) error {
	if rec.LocalPath == "" {
		return nil
	}
	if err := os.Remove(rec.LocalPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	cleanupAlbumDir(filepath.Dir(rec.LocalPath))
	return nil
}

// cleanupAlbumDir removes an album folder once only cover images remain,
// then tries the artist folder above it.
func cleanupAlbumDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isCoverFile(e.Name()) {
			return
		}
	}
	for _, e := range entries {
		_ = os.Remove(filepath.Join(dir, e.Name()))
	}
	_ = os.Remove(dir)
	_ = os.Remove(filepath.Dir(dir)) // non-empty while other albums remain
}

func isCoverFile(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.EqualFold(base, "cover") || strings.EqualFold(base, "folder")
}
