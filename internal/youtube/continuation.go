package youtube

import (
	"fmt"
	"time"
)

// Kind names one of the continuation shapes.
type Kind string

const (
	KindReload         Kind = "reload"
	KindTimed          Kind = "timed"
	KindInvalidation   Kind = "invalidation"
	KindLiveChatReplay Kind = "liveChatReplay"
	KindPlayerSeek     Kind = "playerSeek"
)

// SupportsBurst reports whether the live engine may poll this continuation
// ahead of the server's timeout.
func (k Kind) SupportsBurst() bool {
	return k == KindTimed || k == KindInvalidation
}

// Kind reports which field of c is set, or "" when none is.
func (c Continuation) Kind() Kind {
	switch {
	case c.Reload != nil:
		return KindReload
	case c.Timed != nil:
		return KindTimed
	case c.Invalidation != nil:
		return KindInvalidation
	case c.LiveChatReplay != nil:
		return KindLiveChatReplay
	case c.PlayerSeek != nil:
		return KindPlayerSeek
	}
	return ""
}

// Token is a continuation projected to the fields the engines consume.
type Token struct {
	Kind         Kind
	Continuation string
	Timeout      time.Duration
}

func (c Continuation) token(kind Kind) (Token, bool) {
	switch kind {
	case KindReload:
		if c.Reload != nil {
			return Token{Kind: kind, Continuation: c.Reload.Continuation}, true
		}
	case KindTimed:
		if c.Timed != nil {
			return Token{Kind: kind, Continuation: c.Timed.Continuation, Timeout: millis(c.Timed.TimeoutMs)}, true
		}
	case KindInvalidation:
		if c.Invalidation != nil {
			return Token{Kind: kind, Continuation: c.Invalidation.Continuation, Timeout: millis(c.Invalidation.TimeoutMs)}, true
		}
	case KindLiveChatReplay:
		if c.LiveChatReplay != nil {
			return Token{Kind: kind, Continuation: c.LiveChatReplay.Continuation}, true
		}
	case KindPlayerSeek:
		if c.PlayerSeek != nil {
			return Token{Kind: kind, Continuation: c.PlayerSeek.Continuation}, true
		}
	}
	return Token{}, false
}

func millis(m Millis) time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Select returns the first continuation in list order that carries kind.
func Select(list []Continuation, kind Kind) (Token, error) {
	for _, c := range list {
		if t, ok := c.token(kind); ok {
			return t, nil
		}
	}
	return Token{}, fmt.Errorf("%w: want %s", ErrMissingContinuation, kind)
}

// SelectLive resolves the next live continuation: an invalidation token when
// present, a timed one otherwise.
func SelectLive(list []Continuation) (Token, error) {
	if t, err := Select(list, KindInvalidation); err == nil {
		return t, nil
	}
	if t, err := Select(list, KindTimed); err == nil {
		return t, nil
	}
	return Token{}, fmt.Errorf("%w: want %s or %s", ErrMissingContinuation, KindInvalidation, KindTimed)
}
