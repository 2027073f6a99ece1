package youtube

import (
	"errors"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ"},
		{"youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/live/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		got, err := ExtractVideoID(tt.input)
		if err != nil {
			t.Errorf("ExtractVideoID(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	for _, input := range []string{"", "short", "https://example.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/feed"} {
		if _, err := ExtractVideoID(input); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ExtractVideoID(%q): expected ErrInvalidInput, got %v", input, err)
		}
	}
}

func TestWatchURL(t *testing.T) {
	if got := WatchURL("https://www.youtube.com/", "abc"); got != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("unexpected url %s", got)
	}
}
