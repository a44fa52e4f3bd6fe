package labbcat

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/five82/labbcat/transport"
)

// ErrMalformedURL matches a base URL that cannot address a LaBB-CAT server.
var ErrMalformedURL = transport.ErrMalformedURL

// URLError reports an unusable base URL given to NewSession.
type URLError struct {
	URL string
	Err error
}

func (e *URLError) Error() string {
	return fmt.Sprintf("labbcat url %q: %v", e.URL, e.Err)
}

func (e *URLError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformedURL) match.
func (e *URLError) Is(target error) bool { return target == ErrMalformedURL }

// ValidationError is a precondition that failed before any request was sent.
type ValidationError struct {
	Op     string
	Reason string
	// Missing lists required parameter names that have no value.
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Reason, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// StoreErrorKind classifies a StoreError.
type StoreErrorKind int

const (
	// KindUnknown is an unclassified store failure.
	KindUnknown StoreErrorKind = iota
	// KindInvalidTaskID is a task ID that is not numeric.
	KindInvalidTaskID
	// KindTaskNotFound is a numeric task ID the server does not know.
	KindTaskNotFound
	// KindUnauthorized means credentials were missing or rejected.
	KindUnauthorized
	// KindNotLabbcat means the URL answered without a LaBB-CAT envelope.
	KindNotLabbcat
	// KindVersion means the server is older than the required version.
	KindVersion
)

func (k StoreErrorKind) String() string {
	switch k {
	case KindInvalidTaskID:
		return "invalid task id"
	case KindTaskNotFound:
		return "task not found"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotLabbcat:
		return "not a LaBB-CAT server"
	case KindVersion:
		return "unsupported version"
	}
	return "store error"
}

// StoreError is a failure of the store as a whole rather than of one
// request: a bad task ID, rejected credentials, or a URL that is not a
// LaBB-CAT server.
type StoreError struct {
	Kind    StoreErrorKind
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreKind reports whether err carries a StoreError of kind k.
func IsStoreKind(err error, k StoreErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == k
}

// PartialError reports the items of a batch that failed while the rest
// succeeded. Failed is keyed by the index of the input item.
type PartialError struct {
	Op     string
	Total  int
	Failed map[int]error
}

func (e *PartialError) Error() string {
	idx := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	msg := fmt.Sprintf("%s: %d of %d items failed", e.Op, len(e.Failed), e.Total)
	if len(idx) > 0 {
		msg += fmt.Sprintf(" (first: #%d: %v)", idx[0], e.Failed[idx[0]])
	}
	return msg
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}
