package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrEmptyPayload     = errors.New("scan payload is empty")
	ErrDuplicateID      = errors.New("record id already exists")
)

// StatusCoder is implemented by delivery errors that carry a response status.
type StatusCoder interface {
	StatusCode() int
}

// StatusError is a delivery failure with an HTTP-like status.
type StatusError struct {
	Status int
	Err    error
}

func NewStatusError(status int, err error) *StatusError {
	return &StatusError{Status: status, Err: err}
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("status %d: %s", e.Status, http.StatusText(e.Status))
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) StatusCode() int { return e.Status }

// IsRetryable reports whether a delivery error is worth another attempt.
// Errors with no status (network failures) are retryable, as are 429 and 5xx.
// Any other status at or above 400 is a definitive rejection.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var sc StatusCoder
	if !errors.As(err, &sc) {
		return true
	}

	status := sc.StatusCode()
	switch {
	case status <= 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	case status >= 400:
		return false
	default:
		return true
	}
}
