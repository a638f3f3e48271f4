package ondusapi

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRequestFailed matches every RequestError with errors.Is
var ErrRequestFailed = errors.New("ondus request failed")

// RequestError describes a failed call to the Ondus API: either the request
// never got a response (Err is set, StatusCode is zero) or the server
// answered with an error status
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP status %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 200))
	}

	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Cause() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// IsUnauthorized is true when the server rejected the bearer token, which
// usually means the session needs to log in again
func IsUnauthorized(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode == 401
	}

	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	return string(b[:n]) + "..."
}
