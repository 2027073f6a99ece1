// Package chat polls the chat timeline of one video, either live or as a
// replay of a finished broadcast, and reports what it finds to a Sink.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/download"
	"github.com/dgnsrekt/ytchat-downloader/internal/telemetry"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// Pacing used when Options leave a field at zero.
const (
	DefaultReplayInterval = 1000 * time.Millisecond
	DefaultBurstInterval  = 1000 * time.Millisecond
	DefaultMaxBursts      = 2

	// InitialBursts makes the first follow-up live poll a burst even when
	// the first page was empty.
	InitialBursts = 1
)

// Options tune an engine. Zero values fall back to the defaults above.
type Options struct {
	ReplayInterval time.Duration
	BurstInterval  time.Duration
	MaxBursts      int

	// AssetDir enables asset downloads when set.
	AssetDir     string
	Downloader   download.Downloader
	AssetWorkers int
}

func (o Options) withDefaults() Options {
	if o.ReplayInterval <= 0 {
		o.ReplayInterval = DefaultReplayInterval
	}
	if o.BurstInterval <= 0 {
		o.BurstInterval = DefaultBurstInterval
	}
	if o.MaxBursts <= 0 {
		o.MaxBursts = DefaultMaxBursts
	}
	if o.AssetWorkers <= 0 {
		o.AssetWorkers = 8
	}
	return o
}

// Engine is implemented by ReplayEngine and LiveEngine.
type Engine interface {
	Start(ctx context.Context, page *youtube.Page) error
	WaitAssets(ctx context.Context) error
	Stats() Stats
	Mode() string
}

// New returns the engine matching the page's timeline mode.
func New(page *youtube.Page, client api.Client, sink Sink, opts Options, logger *zap.Logger) Engine {
	if page.IsLive() {
		return NewLiveEngine(client, sink, opts, logger)
	}
	return NewReplayEngine(client, sink, opts, logger)
}

// Stats are the counters of the most recent run.
type Stats struct {
	Polls   int
	Batches int
	Actions int
	Assets  download.Stats
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// engine is the part shared by both timeline modes.
type engine struct {
	mode   string
	client api.Client
	sink   Sink
	opts   Options
	assets *download.Coordinator
	logger *zap.Logger
	sleep  sleepFunc

	mu      sync.Mutex
	running bool
	stats   Stats

	tasks sync.WaitGroup
}

func newEngine(mode string, client api.Client, sink Sink, opts Options, logger *zap.Logger) *engine {
	if sink == nil {
		sink = NopSink{}
	}
	opts = opts.withDefaults()
	return &engine{
		mode:   mode,
		client: client,
		sink:   sink,
		opts:   opts,
		assets: download.NewCoordinator(opts.Downloader, opts.AssetDir, opts.AssetWorkers, sink, logger.Named("assets")),
		logger: logger.With(zap.String("mode", mode)),
		sleep:  sleepContext,
	}
}

func (e *engine) Mode() string { return e.mode }

// Running reports whether Start is in progress.
func (e *engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *engine) Stats() Stats {
	e.mu.Lock()
	s := e.stats
	e.mu.Unlock()
	s.Assets = e.assets.Stats()
	return s
}

func (e *engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.stats = Stats{}
	return nil
}

// end stops the run and reports its outcome to the sink. A fatal error is
// reported once through Error; every run then gets exactly one Finish.
func (e *engine) end(ctx context.Context, err error) error {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	switch {
	case err == nil:
		e.logger.Info("chat finished")
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		e.logger.Info("chat cancelled", zap.Error(err))
	default:
		e.logger.Error("chat failed", zap.Error(err))
		e.sink.Error(err)
	}
	e.sink.Finish()
	return err
}

// emit delivers a batch and hands it to the asset coordinator without
// waiting for the downloads. Downloads outlive a cancelled run; WaitAssets
// bounds them.
func (e *engine) emit(ctx context.Context, actions []youtube.Action) {
	e.mu.Lock()
	e.stats.Batches++
	e.stats.Actions += len(actions)
	e.mu.Unlock()
	telemetry.AddActions(e.mode, len(actions))

	e.sink.Progress(actions)

	if !e.assets.Enabled() || len(actions) == 0 {
		return
	}
	assetCtx := context.WithoutCancel(ctx)
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		e.assets.Process(assetCtx, actions)
	}()
}

// poll wraps one transport call with metrics.
func (e *engine) poll(ctx context.Context, req api.XhrRequest) (*youtube.ChatXhrResponse, error) {
	start := time.Now()
	resp, err := e.client.FetchChatXhr(ctx, req)
	telemetry.ObservePoll(e.mode, time.Since(start), err)

	e.mu.Lock()
	e.stats.Polls++
	e.mu.Unlock()
	return resp, err
}

// WaitAssets blocks until the asset work scheduled by the engine has settled
// or ctx is done.
func (e *engine) WaitAssets(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.assets.Wait(ctx)
}

func (e *engine) chatContinuation(page *youtube.Page) (youtube.Token, error) {
	list, ok := page.ChatContinuations()
	if !ok {
		return youtube.Token{}, youtube.ErrNoChatRoom
	}
	return youtube.Select(list, youtube.KindReload)
}
