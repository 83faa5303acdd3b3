package fetch

import (
	"errors"

	"pricefeed/internal/platform/timer"
)

// Class labels the outcome of one failed attempt for the retry loop.
type Class int

const (
	// Terminal failures will not be improved by retrying.
	Terminal Class = iota
	// Retryable failures may succeed on another attempt.
	Retryable
)

// String returns the class name for logs.
func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "terminal"
}

// Classify labels a failed attempt. Transport failures and per-attempt
// timeouts are transient. A 5xx status is server-side trouble that often
// heals; a 4xx status means the request itself is wrong and retrying cannot
// fix it. A body that does not parse will not parse next time either.
// Anything unrecognized, including context cancellation, is terminal.
func Classify(err error) Class {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code >= 500 {
			return Retryable
		}
		return Terminal
	}
	var timeoutErr *timer.TimeoutError
	if errors.As(err, &timeoutErr) {
		return Retryable
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return Terminal
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return Retryable
	}
	return Terminal
}
