package envelope

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformed matches any response that could not be read as an envelope.
var ErrMalformed = errors.New("malformed response")

// MalformedError is a successful HTTP exchange whose body is not a valid
// envelope, or whose model does not have the expected shape.
type MalformedError struct {
	HTTPStatus int
	Body       string
	Err        error
}

func (e *MalformedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("malformed response (status %d): %v", e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("malformed response (status %d): %v: %s", e.HTTPStatus, e.Err, e.Body)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformed) match.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// ResponseError is a server-reported failure: a non-2xx status, a non-zero
// code, or a non-empty errors list.
type ResponseError struct {
	HTTPStatus int
	Code       int
	Errors     []string
	Messages   []string

	malformed bool
}

func (e *ResponseError) Error() string {
	var b strings.Builder
	if len(e.Errors) > 0 {
		b.WriteString(strings.Join(e.Errors, "; "))
	} else if text := http.StatusText(e.HTTPStatus); text != "" {
		b.WriteString(text)
	} else {
		b.WriteString("request failed")
	}
	fmt.Fprintf(&b, " (status %d", e.HTTPStatus)
	if e.Code != 0 {
		fmt.Fprintf(&b, ", code %d", e.Code)
	}
	b.WriteByte(')')
	return b.String()
}

// Is matches ErrMalformed when the failure body could not be parsed.
func (e *ResponseError) Is(target error) bool {
	return target == ErrMalformed && e.malformed
}

// StatusOf returns the HTTP status carried by a ResponseError or
// MalformedError in err's chain, or 0.
func StatusOf(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatus
	}
	var me *MalformedError
	if errors.As(err, &me) {
		return me.HTTPStatus
	}
	return 0
}

// IsNotFound reports a 404 ResponseError.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsForbidden reports a 403 ResponseError.
func IsForbidden(err error) bool { return statusIs(err, http.StatusForbidden) }

// IsUnauthorized reports a 401 ResponseError.
func IsUnauthorized(err error) bool { return statusIs(err, http.StatusUnauthorized) }

func statusIs(err error, status int) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.HTTPStatus == status
}
