package chat

import (
	"sync"

	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// Sink observes an engine. Progress, Error and Finish are called from the
// engine goroutine in order. AssetProgress and AssetError may be called from
// download goroutines at any time, including after Finish, so
// implementations must be safe for concurrent use.
type Sink interface {
	Progress(actions []youtube.Action)
	AssetProgress(url, path string)
	AssetError(url string, err error)
	Error(err error)
	Finish()
}

type EventKind string

const (
	EventProgress   EventKind = "progress"
	EventAsset      EventKind = "asset"
	EventAssetError EventKind = "asset_error"
	EventError      EventKind = "error"
	EventFinish     EventKind = "finish"
)

// Event is one sink call as a value.
type Event struct {
	Kind    EventKind
	Actions []youtube.Action
	URL     string
	Path    string
	Err     error
}

// ChannelSink turns sink calls into a stream of events. Sends block while
// the buffer is full, until the event is read or the sink is closed.
type ChannelSink struct {
	ch   chan Event
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer), done: make(chan struct{})}
}

// Events returns the stream. It is closed by Close.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Close stops the stream. Blocked sends are released and events sent
// afterwards are dropped. It is safe to call while the stream is unread.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.senders.Wait()
	close(s.ch)
}

func (s *ChannelSink) send(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.senders.Add(1)
	s.mu.Unlock()
	defer s.senders.Done()

	select {
	case s.ch <- ev:
	case <-s.done:
	}
}

func (s *ChannelSink) Progress(actions []youtube.Action) {
	s.send(Event{Kind: EventProgress, Actions: actions})
}

func (s *ChannelSink) AssetProgress(url, path string) {
	s.send(Event{Kind: EventAsset, URL: url, Path: path})
}

func (s *ChannelSink) AssetError(url string, err error) {
	s.send(Event{Kind: EventAssetError, URL: url, Err: err})
}

func (s *ChannelSink) Error(err error) {
	s.send(Event{Kind: EventError, Err: err})
}

func (s *ChannelSink) Finish() {
	s.send(Event{Kind: EventFinish})
}

// MultiSink forwards every call to each sink in order.
type MultiSink []Sink

func (m MultiSink) Progress(actions []youtube.Action) {
	for _, s := range m {
		s.Progress(actions)
	}
}

func (m MultiSink) AssetProgress(url, path string) {
	for _, s := range m {
		s.AssetProgress(url, path)
	}
}

func (m MultiSink) AssetError(url string, err error) {
	for _, s := range m {
		s.AssetError(url, err)
	}
}

func (m MultiSink) Error(err error) {
	for _, s := range m {
		s.Error(err)
	}
}

func (m MultiSink) Finish() {
	for _, s := range m {
		s.Finish()
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Progress([]youtube.Action)    {}
func (NopSink) AssetProgress(string, string) {}
func (NopSink) AssetError(string, error)     {}
func (NopSink) Error(error)                  {}
func (NopSink) Finish()                      {}
