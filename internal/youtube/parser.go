package youtube

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var (
	initialDataMarkers = [][]byte{
		[]byte(`var ytInitialData =`),
		[]byte(`window["ytInitialData"] =`),
		[]byte(`ytInitialData =`),
	}
	playerResponseMarkers = [][]byte{
		[]byte(`var ytInitialPlayerResponse =`),
		[]byte(`ytInitialPlayerResponse =`),
	}
	ytcfgMarker = []byte(`ytcfg.set(`)
)

// ParsePage extracts the initial data and player response from a watch page.
func ParsePage(html []byte) (*Page, error) {
	var page Page
	if err := decodeAfterAny(html, initialDataMarkers, &page.InitialData); err != nil {
		return nil, fmt.Errorf("initial data: %w", err)
	}
	if err := decodeAfterAny(html, playerResponseMarkers, &page.PlayerResponse); err != nil {
		return nil, fmt.Errorf("player response: %w", err)
	}
	return &page, nil
}

// ParseChatPage extracts the chat continuation data and the client config
// from a live_chat or live_chat_replay page.
func ParseChatPage(html []byte) (*ChatPage, error) {
	var page ChatPage
	if err := decodeAfterAny(html, initialDataMarkers, &page.InitialData); err != nil {
		return nil, fmt.Errorf("initial data: %w", err)
	}

	rest := html
	for {
		i := bytes.Index(rest, ytcfgMarker)
		if i < 0 {
			break
		}
		rest = rest[i+len(ytcfgMarker):]
		if trimmed := bytes.TrimLeft(rest, " \t\r\n"); len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var cfg ClientConfig
		if err := json.NewDecoder(bytes.NewReader(rest)).Decode(&cfg); err != nil {
			continue
		}
		if page.Config.APIKey == "" {
			page.Config.APIKey = cfg.APIKey
		}
		if len(page.Config.Context) == 0 {
			page.Config.Context = cfg.Context
		}
	}
	if page.Config.APIKey == "" {
		return nil, fmt.Errorf("%w: ytcfg without INNERTUBE_API_KEY", ErrParse)
	}
	return &page, nil
}

func decodeAfterAny(html []byte, markers [][]byte, v any) error {
	for _, m := range markers {
		i := bytes.Index(html, m)
		if i < 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(html[i+len(m):]))
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: decoding after %q: %v", ErrParse, m, err)
		}
		return nil
	}
	return fmt.Errorf("%w: marker not found", ErrParse)
}
