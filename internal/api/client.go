package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/ytchat-downloader/internal/telemetry"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// Client interface for testability
type Client interface {
	FetchPage(ctx context.Context, idOrURL string) (*youtube.Page, error)
	FetchChatPage(ctx context.Context, live bool, continuation string) (*youtube.ChatPage, error)
	FetchChatXhr(ctx context.Context, req XhrRequest) (*youtube.ChatXhrResponse, error)
}

// XhrRequest describes one follow-up chat request. OffsetMs is only sent for
// replays and InvalidationTimeout only for live chats.
type XhrRequest struct {
	Live                bool
	APIKey              string
	Context             json.RawMessage
	Continuation        string
	OffsetMs            int64
	InvalidationTimeout bool
}

// Options configures an HTTPClient. The header set is fixed for the lifetime
// of the client.
type Options struct {
	BaseURL        string
	AcceptLanguage string
	UserAgent      string
	Headers        map[string]string
	Jar            http.CookieJar
	RatePerSec     int
	Timeout        time.Duration
	RetryDelay     time.Duration
	RetryCount     int
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	headers    http.Header
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	headers := make(http.Header)
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	if opts.AcceptLanguage != "" {
		headers.Set("Accept-Language", opts.AcceptLanguage)
	}
	if opts.UserAgent != "" {
		headers.Set("User-Agent", opts.UserAgent)
	}

	ratePerSec := opts.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			Jar:       opts.Jar,
		},
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		headers:    headers,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: opts.RetryCount,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

func (c *HTTPClient) FetchPage(ctx context.Context, idOrURL string) (*youtube.Page, error) {
	id, err := youtube.ExtractVideoID(idOrURL)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "watch", youtube.WatchURL(c.baseURL, id))
	if err != nil {
		return nil, err
	}
	page, err := youtube.ParsePage(body)
	if err != nil {
		return nil, fmt.Errorf("parsing watch page %s: %w", id, err)
	}
	return page, nil
}

func (c *HTTPClient) FetchChatPage(ctx context.Context, live bool, continuation string) (*youtube.ChatPage, error) {
	path := "/live_chat_replay"
	if live {
		path = "/live_chat"
	}
	u := c.baseURL + path + "?continuation=" + url.QueryEscape(continuation)

	body, err := c.get(ctx, strings.TrimPrefix(path, "/"), u)
	if err != nil {
		return nil, err
	}
	page, err := youtube.ParseChatPage(body)
	if err != nil {
		return nil, fmt.Errorf("parsing chat page: %w", err)
	}
	return page, nil
}

type playerState struct {
	PlayerOffsetMs string `json:"playerOffsetMs"`
}

type adSignalsInfo struct {
	Params []any `json:"params"`
}

type xhrBody struct {
	Context                      json.RawMessage `json:"context"`
	Continuation                 string          `json:"continuation"`
	CurrentPlayerState           *playerState    `json:"currentPlayerState,omitempty"`
	IsInvalidationTimeoutRequest string          `json:"isInvalidationTimeoutRequest,omitempty"`
	AdSignalsInfo                adSignalsInfo   `json:"adSignalsInfo"`
}

func (c *HTTPClient) FetchChatXhr(ctx context.Context, req XhrRequest) (*youtube.ChatXhrResponse, error) {
	endpoint := "get_live_chat_replay"
	if req.Live {
		endpoint = "get_live_chat"
	}
	u := c.baseURL + "/youtubei/v1/live_chat/" + endpoint + "?key=" + url.QueryEscape(req.APIKey)

	payload := xhrBody{
		Context:       req.Context,
		Continuation:  req.Continuation,
		AdSignalsInfo: adSignalsInfo{Params: []any{}},
	}
	if len(payload.Context) == 0 {
		payload.Context = json.RawMessage(`{}`)
	}
	if req.Live {
		payload.IsInvalidationTimeoutRequest = strconv.FormatBool(req.InvalidationTimeout)
	} else {
		payload.CurrentPlayerState = &playerState{PlayerOffsetMs: strconv.FormatInt(req.OffsetMs, 10)}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.send(ctx, endpoint, http.MethodPost, u, b)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out youtube.ChatXhrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return &out, nil
}

// DownloadFile streams the body at url into dest and returns the response
// content type.
func (c *HTTPClient) DownloadFile(ctx context.Context, url string, dest io.Writer) (string, int64, error) {
	resp, err := c.send(ctx, "asset", http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(dest, resp.Body)
	if err != nil {
		return "", n, fmt.Errorf("reading body: %w", err)
	}
	return resp.Header.Get("Content-Type"), n, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint, url string) ([]byte, error) {
	resp, err := c.send(ctx, endpoint, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s body: %w", endpoint, err)
	}
	return body, nil
}

// send performs one logical request. Requests that never got a response are
// retried with exponential backoff; any HTTP status outside 2xx is returned
// immediately as a *TransportError.
func (c *HTTPClient) send(ctx context.Context, endpoint, method, url string, body []byte) (*http.Response, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	c.logger.Debug("requesting", zap.String("method", method), zap.String("endpoint", endpoint))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		for k, v := range c.headers {
			req.Header[k] = v
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		telemetry.ObserveRequest(endpoint, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, &TransportError{StatusCode: resp.StatusCode, URL: redact(url)}
		}
		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// redact drops the api key from urls that end up in errors and logs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
