// Package archive writes a chat download to disk and reads it back.
package archive

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

const DefaultPattern = "[[DATE]][[STREAM_ID]] [TITLE]"

var placeholder = regexp.MustCompile(`\[([A-Z0-9_]+)\]`)

// Substitute replaces each [NAME] in pattern with vars[NAME]. Unknown names
// are replaced by the bare name.
func Substitute(pattern string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(pattern, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return name
	})
}

// SanitizeFilename replaces characters that are not allowed in file names on
// common file systems.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)
}

// OutputDir expands pattern for page.
func OutputDir(pattern string, page *youtube.Page, now time.Time) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return filepath.Clean(Substitute(pattern, map[string]string{
		"DATE":      now.Format("20060102"),
		"STREAM_ID": page.VideoID(),
		"TITLE":     SanitizeFilename(page.Title()),
	}))
}
