package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const testWatchPage = `<script>var ytInitialPlayerResponse = {"videoDetails":{"videoId":"dQw4w9WgXcQ","title":"t","isLive":false,"isLiveContent":true}};</script>
<script>var ytInitialData = {"contents":{"twoColumnWatchNextResults":{"conversationBar":{"liveChatRenderer":{"continuations":[{"reloadContinuationData":{"continuation":"R"}}]}}}}};</script>`

const testChatPage = `<script>ytcfg.set({"INNERTUBE_API_KEY":"K","INNERTUBE_CONTEXT":{"client":{}}});</script>
<script>window["ytInitialData"] = {"continuationContents":{"liveChatContinuation":{"continuations":[{"liveChatReplayContinuationData":{"continuation":"N"}}],"actions":[]}}};</script>`

func newTestClient(baseURL string, retryCount int) *HTTPClient {
	logger, _ := zap.NewDevelopment()
	return NewClient(Options{
		BaseURL:        baseURL,
		AcceptLanguage: "ja",
		UserAgent:      "test-agent",
		Headers:        map[string]string{"X-Extra": "1"},
		RatePerSec:     100,
		Timeout:        5 * time.Second,
		RetryDelay:     10 * time.Millisecond,
		RetryCount:     retryCount,
	}, logger)
}

func TestFetchPage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch" || r.URL.Query().Get("v") != "dQw4w9WgXcQ" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get("Accept-Language") != "ja" {
			t.Errorf("expected Accept-Language ja, got %s", r.Header.Get("Accept-Language"))
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected test-agent, got %s", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("X-Extra") != "1" {
			t.Error("expected extra header")
		}
		_, _ = io.WriteString(w, testWatchPage)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	page, err := client.FetchPage(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.IsArchive() {
		t.Error("expected archive page")
	}
}

func TestFetchPage_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	_, err := client.FetchPage(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Errorf("expected TransportError 404, got %v", err)
	}
}

func TestFetchChatPage_Paths(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		_, _ = io.WriteString(w, testChatPage)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	page, err := client.FetchChatPage(context.Background(), false, "a/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Config.APIKey != "K" {
		t.Errorf("unexpected key %s", page.Config.APIKey)
	}
	if _, err := client.FetchChatPage(context.Background(), true, "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"/live_chat_replay?continuation=a%2Fb", "/live_chat?continuation=x"}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("request %d: expected %s, got %s", i, p, paths[i])
		}
	}
}

func TestFetchChatXhr_ReplayBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/youtubei/v1/live_chat/get_live_chat_replay" || r.URL.Query().Get("key") != "K" {
			t.Errorf("unexpected url %s", r.URL.String())
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %s", r.Header.Get("Content-Type"))
		}

		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if string(body["continuation"]) != `"TOK"` {
			t.Errorf("unexpected continuation %s", body["continuation"])
		}
		if string(body["currentPlayerState"]) != `{"playerOffsetMs":"4200"}` {
			t.Errorf("unexpected player state %s", body["currentPlayerState"])
		}
		if string(body["context"]) != `{"client":{"hl":"en"}}` {
			t.Errorf("unexpected context %s", body["context"])
		}
		if _, ok := body["isInvalidationTimeoutRequest"]; ok {
			t.Error("replay request must not carry isInvalidationTimeoutRequest")
		}
		_, _ = io.WriteString(w, `{"continuationContents":{"liveChatContinuation":{"continuations":[],"actions":[{"addChatItemAction":{"item":{}}}]}}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	resp, err := client.FetchChatXhr(context.Background(), XhrRequest{
		APIKey:       "K",
		Context:      json.RawMessage(`{"client":{"hl":"en"}}`),
		Continuation: "TOK",
		OffsetMs:     4200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Ended() || len(resp.Actions()) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestFetchChatXhr_LiveBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtubei/v1/live_chat/get_live_chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		if !bytes.Contains(b, []byte(`"isInvalidationTimeoutRequest":"true"`)) {
			t.Errorf("expected invalidation flag, got %s", b)
		}
		if bytes.Contains(b, []byte("currentPlayerState")) {
			t.Errorf("live request must not carry player state: %s", b)
		}
		_, _ = io.WriteString(w, `{"responseContext":{}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	resp, err := client.FetchChatXhr(context.Background(), XhrRequest{Live: true, APIKey: "K", Continuation: "T", InvalidationTimeout: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Ended() {
		t.Error("expected ended response")
	}
}

func TestFetchChatXhr_RateLimitedNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.FetchChatXhr(context.Background(), XhrRequest{APIKey: "secret", Continuation: "T"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("api key leaked into error: %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestSend_RetriesConnectionErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url, 2)
	start := time.Now()
	_, err := client.FetchPage(context.Background(), "dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("unexpected error: %v", err)
	}
	// 10ms + 20ms of backoff
	if time.Since(start) < 30*time.Millisecond {
		t.Error("expected backoff between attempts")
	}
}

func TestDownloadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	var buf bytes.Buffer
	ct, n, err := client.DownloadFile(context.Background(), server.URL+"/a.png", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct != "image/png" || n != int64(len("png-bytes")) || buf.String() != "png-bytes" {
		t.Errorf("unexpected result %s %d %q", ct, n, buf.String())
	}
}
