package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// ReplayEngine walks the recorded chat of a finished broadcast. Each poll
// tells the server how far into the recording the delivered chat reaches.
type ReplayEngine struct {
	*engine
}

func NewReplayEngine(client api.Client, sink Sink, opts Options, logger *zap.Logger) *ReplayEngine {
	return &ReplayEngine{engine: newEngine("replay", client, sink, opts, logger)}
}

type replaySession struct {
	apiKey       string
	context      json.RawMessage
	continuation string
	lastOffsetMs int64
}

// observe advances lastOffsetMs to the last replay wrapper of actions. It
// never moves backwards.
func (s *replaySession) observe(actions []youtube.Action) {
	if off, ok := youtube.LastVideoOffset(actions); ok && off > s.lastOffsetMs {
		s.lastOffsetMs = off
	}
}

// Start runs the replay to its end. It returns ErrAlreadyRunning without
// touching the sink when a run is in progress; otherwise the sink gets
// exactly one Finish.
func (e *ReplayEngine) Start(ctx context.Context, page *youtube.Page) error {
	if err := e.begin(); err != nil {
		return err
	}
	return e.end(ctx, e.run(ctx, page))
}

func (e *ReplayEngine) run(ctx context.Context, page *youtube.Page) error {
	if page.IsLive() {
		return &ModeError{WantLive: false}
	}
	reload, err := e.chatContinuation(page)
	if err != nil {
		return err
	}

	chatPage, err := e.client.FetchChatPage(ctx, false, reload.Continuation)
	if err != nil {
		return fmt.Errorf("fetching replay chat page: %w", err)
	}

	actions := chatPage.Actions()
	if len(actions) == 0 {
		e.logger.Info("replay has no chat")
		return nil
	}

	sess := &replaySession{apiKey: chatPage.Config.APIKey, context: chatPage.Config.Context}
	sess.observe(actions)
	e.emit(ctx, actions)

	next, err := youtube.Select(chatPage.Continuations(), youtube.KindLiveChatReplay)
	if err != nil {
		return err
	}
	sess.continuation = next.Continuation

	for {
		if err := e.sleep(ctx, e.opts.ReplayInterval); err != nil {
			return err
		}

		resp, err := e.poll(ctx, api.XhrRequest{
			APIKey:       sess.apiKey,
			Context:      sess.context,
			Continuation: sess.continuation,
			OffsetMs:     sess.lastOffsetMs,
		})
		if err != nil {
			return fmt.Errorf("polling replay chat: %w", err)
		}

		actions := resp.Actions()
		if len(actions) == 0 {
			e.logger.Info("replay reached the end of the recording", zap.Int64("offset_ms", sess.lastOffsetMs))
			return nil
		}

		e.emit(ctx, actions)
		sess.observe(actions)
		e.logger.Debug("replay batch",
			zap.Int("actions", len(actions)),
			zap.Int64("offset_ms", sess.lastOffsetMs))

		next, err := youtube.Select(resp.Continuations(), youtube.KindLiveChatReplay)
		if err != nil {
			return err
		}
		sess.continuation = next.Continuation
	}
}
