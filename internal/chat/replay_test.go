package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

func newTestReplay(client api.Client, sink Sink, opts Options) (*ReplayEngine, *sleepRecorder) {
	e := NewReplayEngine(client, sink, opts, zap.NewNop())
	rec := &sleepRecorder{}
	e.sleep = rec.sleep
	return e, rec
}

func TestReplay_Scenario(t *testing.T) {
	client := &mockClient{
		chatPage: mustDecode[*youtube.ChatPage](t, chatPageJSON(
			`[{"liveChatReplayContinuationData":{"continuation":"C1"}}]`,
			"["+replayAction("A", 500)+","+replayAction("B", 1000)+"]")),
		xhr: []xhrResult{
			{resp: mustDecode[*youtube.ChatXhrResponse](t, xhrJSON(
				`[{"playerSeekContinuationData":{"continuation":"S"}},{"liveChatReplayContinuationData":{"continuation":"C2"}}]`,
				"["+replayAction("C", 4000)+"]"))},
			{resp: mustDecode[*youtube.ChatXhrResponse](t, xhrJSON(`[]`, `[]`))},
		},
	}
	sink := &recordingSink{}
	e, sleeps := newTestReplay(client, sink, Options{})

	if err := e.Start(context.Background(), watchPage(t, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.chatCalls[0] != "false:R1" {
		t.Errorf("expected replay chat page for R1, got %s", client.chatCalls[0])
	}

	events := sink.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}
	if events[0].Kind != EventProgress || !equalStrings(itemIDs(t, events[0].Actions), []string{"A", "B"}) {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[1].Kind != EventProgress || !equalStrings(itemIDs(t, events[1].Actions), []string{"C"}) {
		t.Errorf("unexpected second event %+v", events[1])
	}
	if events[2].Kind != EventFinish {
		t.Errorf("expected finish, got %s", events[2].Kind)
	}

	reqs := client.requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 polls, got %d", len(reqs))
	}
	if reqs[0].Continuation != "C1" || reqs[0].OffsetMs != 1000 || reqs[0].Live {
		t.Errorf("unexpected first poll %+v", reqs[0])
	}
	if reqs[1].Continuation != "C2" || reqs[1].OffsetMs != 4000 {
		t.Errorf("unexpected second poll %+v", reqs[1])
	}
	if reqs[0].APIKey != "KEY" || string(reqs[0].Context) != `{"client":{}}` {
		t.Errorf("client config not forwarded: %+v", reqs[0])
	}

	for _, d := range sleeps.delays {
		if d != DefaultReplayInterval {
			t.Errorf("expected replay interval, got %v", d)
		}
	}

	stats := e.Stats()
	if stats.Batches != 2 || stats.Actions != 3 || stats.Polls != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestReplay_EmptyFirstPage(t *testing.T) {
	client := &mockClient{
		chatPage: mustDecode[*youtube.ChatPage](t, chatPageJSON(`[{"liveChatReplayContinuationData":{"continuation":"C1"}}]`, `[]`)),
	}
	sink := &recordingSink{}
	e, _ := newTestReplay(client, sink, Options{})

	if err := e.Start(context.Background(), watchPage(t, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := sink.snapshot()
	if len(events) != 1 || events[0].Kind != EventFinish {
		t.Errorf("expected only finish, got %+v", events)
	}
	if len(client.requests()) != 0 {
		t.Error("expected no polls")
	}
}

func TestReplay_MissingContinuation(t *testing.T) {
	client := &mockClient{
		chatPage: mustDecode[*youtube.ChatPage](t, chatPageJSON(`[{"timedContinuationData":{"continuation":"T"}}]`, "["+replayAction("A", 1)+"]")),
	}
	sink := &recordingSink{}
	e, _ := newTestReplay(client, sink, Options{})

	err := e.Start(context.Background(), watchPage(t, false))
	if !errors.Is(err, youtube.ErrMissingContinuation) {
		t.Fatalf("expected ErrMissingContinuation, got %v", err)
	}
	if sink.count(EventError) != 1 || sink.count(EventFinish) != 1 {
		t.Errorf("expected one error and one finish, got %+v", sink.snapshot())
	}
	events := sink.snapshot()
	if events[len(events)-1].Kind != EventFinish {
		t.Error("finish must be the last event")
	}
	if e.Running() {
		t.Error("engine must be stopped after failure")
	}
}

func TestReplay_TransportError(t *testing.T) {
	client := &mockClient{
		chatPage: mustDecode[*youtube.ChatPage](t, chatPageJSON(`[{"liveChatReplayContinuationData":{"continuation":"C1"}}]`, "["+replayAction("A", 1)+"]")),
		xhr:      []xhrResult{{err: &api.TransportError{StatusCode: 403, URL: "u"}}},
	}
	sink := &recordingSink{}
	e, _ := newTestReplay(client, sink, Options{})

	err := e.Start(context.Background(), watchPage(t, false))
	if !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if sink.count(EventError) != 1 || sink.count(EventFinish) != 1 {
		t.Errorf("unexpected events %+v", sink.snapshot())
	}
}

func TestReplay_RejectsLivePage(t *testing.T) {
	sink := &recordingSink{}
	e, _ := newTestReplay(&mockClient{}, sink, Options{})

	err := e.Start(context.Background(), watchPage(t, true))
	if !errors.Is(err, ErrWrongMode) {
		t.Fatalf("expected ErrWrongMode, got %v", err)
	}
	var me *ModeError
	if !errors.As(err, &me) || me.WantLive {
		t.Errorf("expected ModeError wanting replay, got %v", err)
	}
	if sink.count(EventFinish) != 1 {
		t.Error("expected finish")
	}
}

func TestReplay_NoChatRoom(t *testing.T) {
	page := watchPage(t, false)
	page.InitialData.Contents.TwoColumnWatchNextResults.ConversationBar = nil

	client := &mockClient{}
	e, _ := newTestReplay(client, &recordingSink{}, Options{})
	if err := e.Start(context.Background(), page); !errors.Is(err, youtube.ErrNoChatRoom) {
		t.Fatalf("expected ErrNoChatRoom, got %v", err)
	}
	if len(client.chatCalls) != 0 {
		t.Error("expected no chat page fetch")
	}
}

func TestReplay_AlreadyRunning(t *testing.T) {
	client := &mockClient{
		chatPage: mustDecode[*youtube.ChatPage](t, chatPageJSON(`[{"liveChatReplayContinuationData":{"continuation":"C1"}}]`, "["+replayAction("A", 1)+"]")),
	}
	sink := &recordingSink{}
	e := NewReplayEngine(client, sink, Options{}, zap.NewNop())

	entered := make(chan struct{})
	e.sleep = func(ctx context.Context, d time.Duration) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx, watchPage(t, false)) }()
	<-entered

	before := len(sink.snapshot())
	if err := e.Start(context.Background(), watchPage(t, false)); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if len(sink.snapshot()) != before {
		t.Error("ErrAlreadyRunning must not emit events")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sink.count(EventError) != 0 || sink.count(EventFinish) != 1 {
		t.Errorf("cancellation must finish without error: %+v", sink.snapshot())
	}
}

// gatedDownloader holds every download until release is closed.
type gatedDownloader struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedDownloader) Download(ctx context.Context, url, dir string) (string, error) {
	close(g.started)
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	p := filepath.Join(dir, filepath.Base(url))
	return p, os.WriteFile(p, []byte("x"), 0o644)
}

func TestReplay_CancelKeepsAssetDownloads(t *testing.T) {
	photo := `{"replayChatItemAction":{"videoOffsetTimeMsec":"10","actions":[{"addChatItemAction":{"item":{"liveChatTextMessageRenderer":{"id":"1","authorPhoto":{"thumbnails":[{"url":"https://yt4.ggpht.com/photo"}]}}}}}]}}`
	client := &mockClient{
		chatPage: mustDecode[*youtube.ChatPage](t, chatPageJSON(`[{"liveChatReplayContinuationData":{"continuation":"C1"}}]`, "["+photo+"]")),
	}
	sink := &recordingSink{}
	dir := t.TempDir()
	dl := &gatedDownloader{started: make(chan struct{}), release: make(chan struct{})}
	e := NewReplayEngine(client, sink, Options{AssetDir: dir, Downloader: dl}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	e.sleep = func(ctx context.Context, d time.Duration) error {
		<-dl.started
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	if err := e.Start(ctx, watchPage(t, false)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(dl.release)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := e.WaitAssets(waitCtx); err != nil {
		t.Fatalf("wait assets: %v", err)
	}

	if n := sink.count(EventAssetError); n != 0 {
		t.Errorf("expected no asset errors after cancel, got %+v", sink.snapshot())
	}
	if n := sink.count(EventAsset); n != 1 {
		t.Errorf("expected the in-flight download to complete, got %d asset events", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "photo")); err != nil {
		t.Errorf("expected downloaded file: %v", err)
	}
}

type fileDownloader struct{}

func (fileDownloader) Download(ctx context.Context, url, dir string) (string, error) {
	p := filepath.Join(dir, filepath.Base(url))
	return p, os.WriteFile(p, []byte("x"), 0o644)
}

func TestReplay_AssetsDownloadedInBackground(t *testing.T) {
	emoji := `{"replayChatItemAction":{"videoOffsetTimeMsec":"10","actions":[{"addChatItemAction":{"item":{"liveChatTextMessageRenderer":{"id":"1","authorPhoto":{"thumbnails":[{"url":"https://yt4.ggpht.com/photo"}]}}}}}]}}`
	client := &mockClient{
		chatPage: mustDecode[*youtube.ChatPage](t, chatPageJSON(`[{"liveChatReplayContinuationData":{"continuation":"C1"}}]`, "["+emoji+"]")),
		xhr: []xhrResult{
			{resp: mustDecode[*youtube.ChatXhrResponse](t, xhrJSON(`[{"liveChatReplayContinuationData":{"continuation":"C2"}}]`, "["+emoji+"]"))},
			{resp: mustDecode[*youtube.ChatXhrResponse](t, xhrJSON(`[]`, `[]`))},
		},
	}
	sink := &recordingSink{}
	dir := t.TempDir()
	e, _ := newTestReplay(client, sink, Options{AssetDir: dir, Downloader: fileDownloader{}})

	if err := e.Start(context.Background(), watchPage(t, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.WaitAssets(ctx); err != nil {
		t.Fatalf("wait assets: %v", err)
	}

	if n := sink.count(EventAsset); n != 2 {
		t.Errorf("expected 2 asset events (one shared download), got %d", n)
	}
	if stats := e.Stats(); stats.Assets.Started != 1 || stats.Assets.Deduplicated != 1 {
		t.Errorf("unexpected asset stats %+v", stats.Assets)
	}
	if _, err := os.Stat(filepath.Join(dir, "photo")); err != nil {
		t.Errorf("expected downloaded file: %v", err)
	}
}
