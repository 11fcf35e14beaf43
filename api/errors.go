package api

import (
	"errors"
	"fmt"
)

// RequestError is the single normalized failure shape of the request
// executor. Status 0 means the request never produced an HTTP response
// (transport-level failure).
type RequestError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: %s (status %d)", e.Method, e.Path, e.Message, e.Status)
}

// AsRequestError extracts the normalized request error from a possibly
// wrapped error chain.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}

// IsNetworkError reports whether err represents a transport-level
// failure rather than an HTTP error status.
func IsNetworkError(err error) bool {
	reqErr, ok := AsRequestError(err)
	return ok && reqErr.Status == 0
}
