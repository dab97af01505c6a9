package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrPending is returned when the catalog accepted a collection request but
// has not finished preparing it. The caller should retry the whole request
// later.
var ErrPending = errors.New("catalog request accepted, retry later")

// ErrUnavailable wraps transport failures and requests rejected by the open
// circuit breaker.
var ErrUnavailable = errors.New("catalog unavailable")

// StatusError is a non-2xx response from the catalog API.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s returned status %d", e.Endpoint, e.StatusCode)
}

// Temporary reports whether the status is worth retrying in a later run.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// APIError is an error document returned in a 2xx response, e.g. for an
// unknown user name.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "catalog error: " + e.Message
}

// StatusCode extracts the upstream status code from err, if any.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}
