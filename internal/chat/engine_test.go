package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

type xhrResult struct {
	resp *youtube.ChatXhrResponse
	err  error
}

type mockClient struct {
	mu        sync.Mutex
	chatPage  *youtube.ChatPage
	chatErr   error
	chatCalls []string
	xhr       []xhrResult
	reqs      []api.XhrRequest
}

func (m *mockClient) FetchPage(ctx context.Context, idOrURL string) (*youtube.Page, error) {
	return nil, errors.New("not used")
}

func (m *mockClient) FetchChatPage(ctx context.Context, live bool, continuation string) (*youtube.ChatPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatCalls = append(m.chatCalls, fmt.Sprintf("%v:%s", live, continuation))
	return m.chatPage, m.chatErr
}

func (m *mockClient) FetchChatXhr(ctx context.Context, req api.XhrRequest) (*youtube.ChatXhrResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if len(m.xhr) == 0 {
		return nil, errors.New("unexpected poll")
	}
	r := m.xhr[0]
	m.xhr = m.xhr[1:]
	return r.resp, r.err
}

func (m *mockClient) requests() []api.XhrRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.XhrRequest(nil), m.reqs...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) add(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Progress(actions []youtube.Action) {
	s.add(Event{Kind: EventProgress, Actions: actions})
}
func (s *recordingSink) AssetProgress(url, path string) {
	s.add(Event{Kind: EventAsset, URL: url, Path: path})
}
func (s *recordingSink) AssetError(url string, err error) {
	s.add(Event{Kind: EventAssetError, URL: url, Err: err})
}
func (s *recordingSink) Error(err error) { s.add(Event{Kind: EventError, Err: err}) }
func (s *recordingSink) Finish()         { s.add(Event{Kind: EventFinish}) }

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *recordingSink) count(kind EventKind) int {
	n := 0
	for _, ev := range s.snapshot() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func mustDecode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func watchPage(t *testing.T, live bool) *youtube.Page {
	t.Helper()
	return mustDecode[*youtube.Page](t, fmt.Sprintf(`{
		"parsedInitialData":{"contents":{"twoColumnWatchNextResults":{"conversationBar":{"liveChatRenderer":{"continuations":[{"reloadContinuationData":{"continuation":"R1"}}]}}}}},
		"parsedInitialPlayerResponse":{"videoDetails":{"videoId":"vid","title":"title","isLive":%v,"isLiveContent":true}}
	}`, live))
}

func textAction(id string) string {
	return fmt.Sprintf(`{"addChatItemAction":{"item":{"liveChatTextMessageRenderer":{"id":%q}}}}`, id)
}

func replayAction(id string, offset int64) string {
	return fmt.Sprintf(`{"replayChatItemAction":{"actions":[%s],"videoOffsetTimeMsec":"%d"}}`, textAction(id), offset)
}

func chatPageJSON(continuations, actions string) string {
	return fmt.Sprintf(`{
		"parsedInitialData":{"continuationContents":{"liveChatContinuation":{"continuations":%s,"actions":%s}}},
		"parsedYtCfg":{"INNERTUBE_API_KEY":"KEY","INNERTUBE_CONTEXT":{"client":{}}}
	}`, continuations, actions)
}

func xhrJSON(continuations, actions string) string {
	return fmt.Sprintf(`{"continuationContents":{"liveChatContinuation":{"continuations":%s,"actions":%s}}}`, continuations, actions)
}

func itemIDs(t *testing.T, actions []youtube.Action) []string {
	t.Helper()
	var ids []string
	for _, a := range youtube.Flatten(actions) {
		if a.AddChatItem == nil {
			t.Fatalf("unexpected action kind %s", a.Kind())
		}
		r, _ := a.AddChatItem.Item.Renderer()
		ids = append(ids, r.ID)
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestChannelSink(t *testing.T) {
	s := NewChannelSink(8)
	s.Progress(nil)
	s.AssetProgress("u", "p")
	s.AssetError("u2", errors.New("x"))
	s.Error(errors.New("fatal"))
	s.Finish()
	s.Close()
	s.Finish() // dropped after Close

	var kinds []string
	for ev := range s.Events() {
		kinds = append(kinds, string(ev.Kind))
	}
	want := []string{"progress", "asset", "asset_error", "error", "finish"}
	if !equalStrings(kinds, want) {
		t.Errorf("got %v, want %v", kinds, want)
	}
}

func TestChannelSink_CloseReleasesBlockedSend(t *testing.T) {
	s := NewChannelSink(0)

	sent := make(chan struct{})
	go func() {
		s.Finish()
		close(sent)
	}()
	time.Sleep(20 * time.Millisecond) // let Finish block on the unbuffered stream

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind an unread event")
	}
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("blocked send was not released by Close")
	}

	s.Progress(nil) // dropped after Close
	if _, ok := <-s.Events(); ok {
		t.Error("expected closed stream")
	}
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, b}
	m.Progress(nil)
	m.Finish()

	for _, s := range []*recordingSink{a, b} {
		if s.count(EventProgress) != 1 || s.count(EventFinish) != 1 {
			t.Errorf("unexpected events %+v", s.snapshot())
		}
	}
}

func TestNew_PicksEngineByMode(t *testing.T) {
	logger := zap.NewNop()
	if e := New(watchPage(t, true), &mockClient{}, nil, Options{}, logger); e.Mode() != "live" {
		t.Errorf("expected live engine, got %s", e.Mode())
	}
	if e := New(watchPage(t, false), &mockClient{}, nil, Options{}, logger); e.Mode() != "replay" {
		t.Errorf("expected replay engine, got %s", e.Mode())
	}
}
