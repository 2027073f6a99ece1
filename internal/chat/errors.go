package chat

import "errors"

var (
	ErrAlreadyRunning = errors.New("engine is already running")
	ErrWrongMode      = errors.New("wrong timeline mode")
)

// ModeError is returned when a page is handed to the engine of the other
// timeline mode.
type ModeError struct {
	WantLive bool
}

func (e *ModeError) Error() string {
	if e.WantLive {
		return "video is not a live stream"
	}
	return "video is a live stream, not a replay"
}

func (e *ModeError) Unwrap() error {
	return ErrWrongMode
}
