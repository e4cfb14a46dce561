// Package naming turns post descriptions into safe file and folder names
// and resolves where each media task lands on disk.
package naming

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// FileNameMax bounds the base name of a downloaded file, in runes
	FileNameMax = 150
	// FolderNameMax bounds collection folder names, in runes
	FolderNameMax = 100
)

var (
	illegalChars = regexp.MustCompile(`[\\/*?:"<>|#%]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Sanitize returns a name safe for every common filesystem, at most max runes long.
// Sanitize(Sanitize(s, n), n) == Sanitize(s, n).
func Sanitize(s string, max int) string {
	if s == "" {
		return "unknown"
	}

	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	s = strings.ToValidUTF8(s, "_")
	s = illegalChars.ReplaceAllString(s, "_")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if s == "" {
		return "unknown"
	}

	if utf8.RuneCountInString(s) > max {
		s = truncateMiddle(s, max)
	}
	return s
}

func truncateMiddle(s string, max int) string {
	runes := []rune(s)
	head, tail := max/2-2, max/2-1
	if head <= 0 || tail <= 0 {
		return string(runes[:max])
	}
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}

// TruncateRunes cuts s to at most n runes
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
