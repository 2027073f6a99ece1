package youtube

import "errors"

var (
	// ErrMissingContinuation means no continuation of the awaited kind was present.
	ErrMissingContinuation = errors.New("missing continuation")
	// ErrNoChatRoom means the video page has no chat.
	ErrNoChatRoom = errors.New("page has no chat room")
	// ErrInvalidInput means the input is neither a video id nor a video url.
	ErrInvalidInput = errors.New("invalid video id or url")
	// ErrParse means an expected data blob could not be found or decoded.
	ErrParse = errors.New("parse error")
)
