package ai

import (
	"errors"
	"strings"
)

var (
	// ErrRetriesExhausted marks a generation that failed transiently on
	// every allowed attempt. Distinct from a non-retriable upstream error
	// so callers can log overload separately from hard failure.
	ErrRetriesExhausted = errors.New("model retries exhausted")

	// ErrMalformedOutput marks model output that is not valid JSON after
	// fence cleanup, or JSON that misses required fields.
	ErrMalformedOutput = errors.New("malformed model output")
)

// TransientError wraps an upstream failure that is expected to resolve on
// retry (overload, internal error). Anything else propagates immediately.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient upstream error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// statusCoder is satisfied by SDK error types that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// IsTransient reports whether err belongs to the retriable class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case 429, 500, 502, 503:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "status code: 503") ||
		strings.Contains(msg, "status code: 500")
}
