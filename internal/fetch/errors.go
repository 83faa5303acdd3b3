package fetch

import (
	"fmt"
)

// TransportError wraps a connect, DNS or IO failure from the HTTP transport.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx HTTP response. Body holds a truncated copy
// of the response body for diagnostics.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
	}
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.Code, e.Body)
}

// DecodeError reports a 2xx body that failed to parse as the expected shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("GET %s: decode response: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExhaustedError is synthesized when every attempt in the retry budget
// failed with a retryable error. Attempts is the total count including the
// initial attempt; Last is the failure of the final attempt.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("GET %s: failed after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
