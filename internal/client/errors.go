package client

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrRequestFailed is returned for any non-2xx response.
	ErrRequestFailed = errors.New("request failed")
	// ErrUnavailable is returned when the server cannot be reached.
	ErrUnavailable = errors.New("service unavailable")
)

// StatusError carries the HTTP status and the server's error message.
// It matches ErrRequestFailed under errors.Is.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrRequestFailed, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrRequestFailed }

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
