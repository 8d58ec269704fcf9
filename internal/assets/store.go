package assets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	// imagesPrefix is the mount-relative directory extracted assets are
	// written under. The URL returned to clients starts with it.
	imagesPrefix = "images"

	// defaultFolderStem names asset folders when no origin file name was
	// supplied with the request.
	defaultFolderStem = "document"

	maxFolderStemLen = 50
)

// Store writes extracted image assets under a mounted storage path.
// The mount is shared across processes; uniqueness of generated file
// names stands in for locking.
type Store struct {
	// MountDir is the local path backed by external object storage.
	MountDir string
}

// NewStore creates a store rooted at the given mount directory.
func NewStore(mountDir string) *Store {
	return &Store{MountDir: mountDir}
}

// Saved describes one asset written to storage.
type Saved struct {
	// URL is the mount-relative fetch path, e.g. "images/report_x/f.png".
	URL string

	// LocalPath is the absolute path the asset was written to.
	LocalPath string
}

// Save writes the asset as PNG into the given folder, creating the folder
// if needed. Concurrent creation of the same folder is safe.
func (s *Store) Save(asset *BinaryAsset, folder string) (Saved, error) {
	img, err := imaging.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return Saved{}, fmt.Errorf("decoding image: %w", err)
	}

	dir := filepath.Join(s.MountDir, imagesPrefix, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("creating asset directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.png", time.Now().UTC().Format("20060102150405"), shortID())
	localPath := filepath.Join(dir, filename)

	f, err := os.Create(localPath) //nolint:gosec // G304: Path is built from sanitized components
	if err != nil {
		return Saved{}, fmt.Errorf("creating asset file: %w", err)
	}

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		_ = f.Close()
		_ = os.Remove(localPath)
		return Saved{}, fmt.Errorf("encoding png: %w", err)
	}
	if err := f.Close(); err != nil {
		return Saved{}, fmt.Errorf("closing asset file: %w", err)
	}

	return Saved{
		URL:       imagesPrefix + "/" + folder + "/" + filename,
		LocalPath: localPath,
	}, nil
}

// FolderName derives the storage folder for one request's assets from the
// originating file name and the request session ID.
func FolderName(originName, sessionID string) string {
	return sanitizeFolderStem(originName) + "_" + sessionID
}

// sanitizeFolderStem reduces an origin file name to a safe folder stem:
// path and extension stripped, only alphanumerics, '_' and '-' kept,
// truncated to 50 characters.
func sanitizeFolderStem(originName string) string {
	stem := filepath.Base(originName)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" {
		return defaultFolderStem
	}
	if len(out) > maxFolderStemLen {
		out = out[:maxFolderStemLen]
	}
	return out
}
