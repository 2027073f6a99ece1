package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// LiveEngine follows the chat of a running broadcast. It waits as long as
// the server asks, except for a short burst of quick polls after activity.
type LiveEngine struct {
	*engine
}

func NewLiveEngine(client api.Client, sink Sink, opts Options, logger *zap.Logger) *LiveEngine {
	return &LiveEngine{engine: newEngine("live", client, sink, opts, logger)}
}

type liveSession struct {
	apiKey          string
	context         json.RawMessage
	next            youtube.Token
	remainingBursts int
	maxBursts       int
}

func newLiveSession(cfg youtube.ClientConfig, maxBursts int) *liveSession {
	return &liveSession{
		apiKey:          cfg.APIKey,
		context:         cfg.Context,
		remainingBursts: InitialBursts,
		maxBursts:       maxBursts,
	}
}

// wait decides the delay before the next poll and whether that poll is an
// early one. It consumes a burst when it returns the burst interval.
func (s *liveSession) wait(burstInterval time.Duration) (time.Duration, bool) {
	if s.remainingBursts > 0 && s.next.Kind.SupportsBurst() {
		s.remainingBursts--
		return burstInterval, true
	}
	return s.next.Timeout, false
}

// advance records the response to the last poll.
func (s *liveSession) advance(next youtube.Token, batchSize int) {
	s.next = next
	if batchSize > 0 && next.Kind.SupportsBurst() {
		s.remainingBursts = s.maxBursts
	}
}

// Start follows the live chat until the broadcast ends. It returns
// ErrAlreadyRunning without touching the sink when a run is in progress;
// otherwise the sink gets exactly one Finish.
func (e *LiveEngine) Start(ctx context.Context, page *youtube.Page) error {
	if err := e.begin(); err != nil {
		return err
	}
	return e.end(ctx, e.run(ctx, page))
}

func (e *LiveEngine) run(ctx context.Context, page *youtube.Page) error {
	if !page.IsLive() {
		return &ModeError{WantLive: true}
	}
	reload, err := e.chatContinuation(page)
	if err != nil {
		return err
	}

	chatPage, err := e.client.FetchChatPage(ctx, true, reload.Continuation)
	if err != nil {
		return fmt.Errorf("fetching live chat page: %w", err)
	}

	// The first batch is delivered even when empty.
	e.emit(ctx, chatPage.Actions())

	next, err := youtube.SelectLive(chatPage.Continuations())
	if err != nil {
		return err
	}
	sess := newLiveSession(chatPage.Config, e.opts.MaxBursts)
	sess.next = next

	for {
		delay, early := sess.wait(e.opts.BurstInterval)
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}

		resp, err := e.poll(ctx, api.XhrRequest{
			Live:                true,
			APIKey:              sess.apiKey,
			Context:             sess.context,
			Continuation:        sess.next.Continuation,
			InvalidationTimeout: early,
		})
		if err != nil {
			return fmt.Errorf("polling live chat: %w", err)
		}
		if resp.Ended() {
			e.logger.Info("broadcast ended")
			return nil
		}

		actions := resp.Actions()
		if len(actions) > 0 {
			e.emit(ctx, actions)
		}

		next, err := youtube.SelectLive(resp.Continuations())
		if err != nil {
			return err
		}
		sess.advance(next, len(actions))
		e.logger.Debug("live batch",
			zap.Int("actions", len(actions)),
			zap.String("next", string(next.Kind)),
			zap.Int("remaining_bursts", sess.remainingBursts))
	}
}
