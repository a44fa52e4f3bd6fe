package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedURL reports a request URL that cannot be used for an HTTP exchange.
	ErrMalformedURL = errors.New("malformed url")

	// ErrRequestCancelled is returned when a cooperative cancel was observed
	// while a multipart body was being written.
	ErrRequestCancelled = errors.New("request cancelled")
)

// Error describes a network-level failure: the exchange never produced an
// HTTP status. HTTP-level failures are returned as responses, not errors.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
