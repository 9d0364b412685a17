package feed

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus is wrapped by TransportError when the endpoint answers
// with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// TransportError reports a network or I/O failure while fetching the feed.
// It is terminal for the current load.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch feed from %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch feed from %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedFeedError reports that the feed body is not a JSON array of
// article objects. The whole load fails; no partial result is returned.
type MalformedFeedError struct {
	Reason string
	Err    error
}

func (e *MalformedFeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed feed: %s: %v", e.Reason, e.Err)
	}
	return "malformed feed: " + e.Reason
}

func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is, or wraps, a MalformedFeedError.
func IsMalformed(err error) bool {
	var me *MalformedFeedError
	return errors.As(err, &me)
}
