package relay

import (
	"encoding/json"

	"github.com/dgnsrekt/ytchat-downloader/internal/chat"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// Frame is the JSON text message sent to relay clients for every engine
// event.
type Frame struct {
	Type    chat.EventKind   `json:"type"`
	Actions []youtube.Action `json:"actions,omitempty"`
	URL     string           `json:"url,omitempty"`
	Path    string           `json:"path,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func encodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}
