package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable = errors.New("video is private or removed")
	ErrRateLimited = errors.New("rate limited by YouTube")
)

// TransportError is returned for any non-2xx response.
type TransportError struct {
	StatusCode int
	URL        string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *TransportError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusForbidden, http.StatusNotFound:
		return ErrUnavailable
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
