package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/ytchat-downloader/internal/archive"
)

func writeCounts(sb *strings.Builder, s archive.Summary) {
	sb.WriteString(fmt.Sprintf("Video: %s\n", s.VideoID))
	if s.Title != "" {
		sb.WriteString(fmt.Sprintf("Title: %s\n", s.Title))
	}
	sb.WriteString(fmt.Sprintf("Mode: %s\n", s.Mode))
	sb.WriteString(fmt.Sprintf("Batches: %d\n", s.Batches))
	sb.WriteString(fmt.Sprintf("Actions: %d\n", s.Actions))
	if s.AssetsOK > 0 || s.AssetsFailed > 0 {
		sb.WriteString(fmt.Sprintf("Assets: %d ok, %d failed\n", s.AssetsOK, s.AssetsFailed))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s", s.Duration().Round(time.Second)))
}

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(s archive.Summary) string {
	var sb strings.Builder
	writeCounts(&sb, s)
	if s.Dir != "" {
		sb.WriteString(fmt.Sprintf("\nOutput: %s", s.Dir))
	}
	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(s archive.Summary, err error) string {
	var sb strings.Builder
	writeCounts(&sb, s)

	if err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", err))
	} else if s.Error != "" {
		sb.WriteString(fmt.Sprintf("\n\nError: %s", s.Error))
	}
	return sb.String()
}
