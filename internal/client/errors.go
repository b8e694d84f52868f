package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport matches every failed call: connectivity errors and non-2xx
// responses alike.
var ErrTransport = errors.New("transport error")

type TransportError struct {
	Method     string
	Path       string
	StatusCode int    // zero when no response was received
	Message    string // error_msg from the response body, if any
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool     { return StatusCode(err) == http.StatusNotFound }
func IsForbidden(err error) bool    { return StatusCode(err) == http.StatusForbidden }
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }
