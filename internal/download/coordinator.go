package download

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dgnsrekt/ytchat-downloader/internal/assets"
	"github.com/dgnsrekt/ytchat-downloader/internal/telemetry"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// Downloader stores one asset under dir and returns where it ended up.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

// Events receives per-asset outcomes. Calls may come from several goroutines.
type Events interface {
	AssetProgress(url, path string)
	AssetError(url string, err error)
}

// Coordinator downloads every asset referenced by chat actions exactly once
// for its lifetime.
type Coordinator struct {
	downloader Downloader
	dir        string
	sem        *semaphore.Weighted
	events     Events
	logger     *zap.Logger

	mu      sync.Mutex
	records map[string]*record
	stats   Stats

	// waiters for downloads started by earlier batches
	pending sync.WaitGroup
}

// NewCoordinator returns a coordinator writing into dir. With an empty dir
// Process does nothing.
func NewCoordinator(downloader Downloader, dir string, workers int, events Events, logger *zap.Logger) *Coordinator {
	if workers <= 0 {
		workers = 1
	}
	return &Coordinator{
		downloader: downloader,
		dir:        dir,
		sem:        semaphore.NewWeighted(int64(workers)),
		events:     events,
		logger:     logger,
		records:    make(map[string]*record),
	}
}

// Enabled reports whether assets are being stored.
func (c *Coordinator) Enabled() bool {
	return c.dir != "" && c.downloader != nil
}

// Dir is the asset directory.
func (c *Coordinator) Dir() string {
	return c.dir
}

// Process starts downloads for the assets of actions that have not been seen
// before and blocks until those settle. Assets already seen in an earlier
// batch are reported once their shared download settles, without blocking.
func (c *Coordinator) Process(ctx context.Context, actions []youtube.Action) *BatchResult {
	result := &BatchResult{}
	if !c.Enabled() {
		return result
	}

	urls := unique(assets.Extract(actions))
	result.Total = len(urls)
	if len(urls) == 0 {
		return result
	}

	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
	)
	for _, url := range urls {
		rec, fresh := c.claim(url)
		if !fresh {
			result.Deduplicated++
			telemetry.AssetDeduplicated()
			c.pending.Add(1)
			go func() {
				defer c.pending.Done()
				c.follow(ctx, rec)
			}()
			continue
		}

		result.Started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.fetch(ctx, rec)

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec, err))
				return
			}
			result.Success++
		}()
	}
	wg.Wait()

	c.logger.Debug("asset batch settled",
		zap.Int("total", result.Total),
		zap.Int("started", result.Started),
		zap.Int("deduplicated", result.Deduplicated),
		zap.Int("failed", result.Failed))
	return result
}

// Wait blocks until every deferred report for deduplicated assets has been
// delivered or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the lifetime counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// claim returns the record for url, creating it when url is new. The record
// is in the map before any download starts.
func (c *Coordinator) claim(url string) (*record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.records[url]; ok {
		c.stats.Deduplicated++
		return rec, false
	}
	rec := newRecord(url)
	c.records[url] = rec
	c.stats.Started++
	return rec, true
}

func (c *Coordinator) fetch(ctx context.Context, rec *record) error {
	telemetry.AssetStarted()

	var (
		path string
		err  error
	)
	if err = c.sem.Acquire(ctx, 1); err == nil {
		path, err = c.downloader.Download(ctx, rec.url, c.dir)
		c.sem.Release(1)
	}
	rec.settle(path, err)

	c.mu.Lock()
	if err != nil {
		c.stats.Failed++
	} else {
		c.stats.Succeeded++
	}
	c.mu.Unlock()

	if err != nil {
		telemetry.AssetFailed()
	} else {
		telemetry.AssetSucceeded()
	}
	c.report(rec)
	return err
}

func (c *Coordinator) follow(ctx context.Context, rec *record) {
	select {
	case <-rec.done:
		c.report(rec)
	case <-ctx.Done():
	}
}

func (c *Coordinator) report(rec *record) {
	if rec.err != nil {
		c.logger.Warn("asset download failed", zap.String("url", rec.url), zap.Error(rec.err))
		if c.events != nil {
			c.events.AssetError(rec.url, rec.err)
		}
		return
	}
	if c.events != nil {
		c.events.AssetProgress(rec.url, rec.path)
	}
}

func unique(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
