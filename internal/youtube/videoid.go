package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDPattern  = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	videoURLPattern = regexp.MustCompile(`(?:v=|/shorts/|/live/|/embed/|/v/|youtu\.be/)([0-9A-Za-z_-]{11})`)
)

// ExtractVideoID accepts a raw id or one of the common YouTube URL shapes.
func ExtractVideoID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrInvalidInput
	}
	if videoIDPattern.MatchString(s) {
		return s, nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "youtu.be" && host != "youtube.com" && !strings.HasSuffix(host, ".youtube.com") {
		return "", fmt.Errorf("%w: unsupported host %q", ErrInvalidInput, u.Hostname())
	}
	m := videoURLPattern.FindStringSubmatch(s)
	if len(m) == 2 {
		return m[1], nil
	}
	return "", ErrInvalidInput
}

// WatchURL returns the canonical watch page URL for id under base.
func WatchURL(base, id string) string {
	return strings.TrimSuffix(base, "/") + "/watch?v=" + url.QueryEscape(id)
}
