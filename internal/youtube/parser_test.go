package youtube

import (
	"errors"
	"testing"
)

const watchHTML = `<html><script>var ytInitialPlayerResponse = {"videoDetails":{"videoId":"dQw4w9WgXcQ","title":"Stream; \"night\"","isLive":true,"isLiveContent":true}};var meta = 1;</script>
<script>var ytInitialData = {"contents":{"twoColumnWatchNextResults":{"conversationBar":{"liveChatRenderer":{"continuations":[{"reloadContinuationData":{"continuation":"RELOAD"}}]}}}}};</script></html>`

const chatHTML = `<script>ytcfg.set("EXPERIMENT_FLAGS", true);ytcfg.set({"INNERTUBE_API_KEY":"KEY","INNERTUBE_CONTEXT":{"client":{"clientName":"WEB"}}});</script>
<script>window["ytInitialData"] = {"continuationContents":{"liveChatContinuation":{"continuations":[{"invalidationContinuationData":{"continuation":"NEXT","timeoutMs":10000}}],"actions":[{"addChatItemAction":{"item":{}}}]}}};</script>`

func TestParsePage(t *testing.T) {
	page, err := ParsePage([]byte(watchHTML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.VideoID() != "dQw4w9WgXcQ" {
		t.Errorf("unexpected video id %s", page.VideoID())
	}
	if page.Title() != `Stream; "night"` {
		t.Errorf("unexpected title %s", page.Title())
	}
	if !page.IsLive() {
		t.Error("expected live page")
	}
	list, ok := page.ChatContinuations()
	if !ok || len(list) != 1 {
		t.Fatalf("expected one continuation, got %d (ok=%v)", len(list), ok)
	}
	tok, err := Select(list, KindReload)
	if err != nil || tok.Continuation != "RELOAD" {
		t.Errorf("unexpected reload token %+v (%v)", tok, err)
	}
}

func TestParsePage_MissingData(t *testing.T) {
	_, err := ParsePage([]byte(`<html></html>`))
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}

	_, err = ParsePage([]byte(`var ytInitialData = {"contents": [broken`))
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for broken json, got %v", err)
	}
}

func TestParseChatPage(t *testing.T) {
	page, err := ParseChatPage([]byte(chatHTML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Config.APIKey != "KEY" {
		t.Errorf("unexpected api key %s", page.Config.APIKey)
	}
	if string(page.Config.Context) != `{"client":{"clientName":"WEB"}}` {
		t.Errorf("unexpected context %s", page.Config.Context)
	}
	if len(page.Actions()) != 1 {
		t.Errorf("expected 1 action, got %d", len(page.Actions()))
	}
	tok, err := SelectLive(page.Continuations())
	if err != nil || tok.Continuation != "NEXT" {
		t.Errorf("unexpected live token %+v (%v)", tok, err)
	}
}

func TestParseChatPage_NoConfig(t *testing.T) {
	_, err := ParseChatPage([]byte(`window["ytInitialData"] = {};`))
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}
