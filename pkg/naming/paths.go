package naming

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
	"unicode/utf8"

	"douyindl/pkg/media"
)

const (
	// MaxPathLength is the candidate path length above which a shorter name is used
	MaxPathLength = 240

	imagesDir         = "images"
	fallbackBaseLen   = 80
	maxCollisionTries = 200
	stampLayout       = "20060102150405"

	// DefaultUserFolder is used when a nickname sanitizes to nothing useful
	DefaultUserFolder = "Douyin_Downloads"
)

// Folder returns root[/collection][/images] for a task of the given kind
func Folder(root, collection string, kind media.Kind) string {
	folder := root
	if collection != "" {
		folder = filepath.Join(folder, Sanitize(collection, FolderNameMax))
	}
	if kind != media.KindVideo {
		folder = filepath.Join(folder, imagesDir)
	}
	return folder
}

// UserFolder returns the per-user download directory under base
func UserFolder(base, nickname string) string {
	name := DefaultUserFolder
	if nickname != "" {
		if clean := Sanitize(nickname, FolderNameMax); clean != "unknown" {
			name = clean
		}
	}
	return filepath.Join(base, name)
}

// UniquePath returns a path inside folder that does not exist yet.
// The plain name is preferred; long or taken names get a timestamp and
// URL hash, then a numeric suffix.
func UniquePath(folder, desc, ext, url string, now time.Time) string {
	clean := Sanitize(desc, FileNameMax)
	candidate := filepath.Join(folder, clean+ext)

	if utf8.RuneCountInString(candidate) <= MaxPathLength && !exists(candidate) {
		return candidate
	}

	hash := urlHash(url)
	candidate = filepath.Join(folder, fmt.Sprintf("%s_%s_%s%s", TruncateRunes(clean, fallbackBaseLen), now.Format(stampLayout), hash, ext))

	stem := candidate[:len(candidate)-len(ext)]
	for n := 1; exists(candidate); n++ {
		if n > maxCollisionTries {
			return filepath.Join(folder, fmt.Sprintf("file_%d_%s%s", now.Unix(), hash, ext))
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	return candidate
}

// ExpectedPath is where a task lands when no collision occurs, relative to
// the user folder and slash separated. It never touches the filesystem.
func ExpectedPath(t media.Task) string {
	parts := make([]string, 0, 3)
	if t.Collection != "" {
		parts = append(parts, Sanitize(t.Collection, FolderNameMax))
	}
	if t.Kind != media.KindVideo {
		parts = append(parts, imagesDir)
	}
	parts = append(parts, Sanitize(t.Description, FileNameMax)+t.Ext)
	return path.Join(parts...)
}

func urlHash(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:8]
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
