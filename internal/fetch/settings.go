package fetch

import (
	"errors"
	"time"
)

// Default retry parameters.
const (
	DefaultMaxRetries     = 3
	DefaultRequestTimeout = 10 * time.Second
	DefaultBaseBackoff    = 2 * time.Second
)

// RetrySettings configures the retry loop. The With* builders operate on
// value receivers and return updated copies, so a base configuration can be
// shared between fetchers and overridden independently without hidden
// mutation.
type RetrySettings struct {
	// MaxRetries is the number of retries after the initial attempt, so the
	// total attempt budget is MaxRetries+1.
	MaxRetries int
	// RequestTimeout bounds each individual attempt.
	RequestTimeout time.Duration
	// BaseBackoff is the delay before the first retry; it doubles for each
	// retry after that.
	BaseBackoff time.Duration
}

// DefaultSettings returns the default retry configuration.
func DefaultSettings() RetrySettings {
	return RetrySettings{
		MaxRetries:     DefaultMaxRetries,
		RequestTimeout: DefaultRequestTimeout,
		BaseBackoff:    DefaultBaseBackoff,
	}
}

// WithMaxRetries returns a copy with the retry budget replaced.
func (s RetrySettings) WithMaxRetries(n int) RetrySettings {
	s.MaxRetries = n
	return s
}

// WithRequestTimeout returns a copy with the per-attempt timeout replaced.
func (s RetrySettings) WithRequestTimeout(d time.Duration) RetrySettings {
	s.RequestTimeout = d
	return s
}

// WithBaseBackoff returns a copy with the base backoff replaced.
func (s RetrySettings) WithBaseBackoff(d time.Duration) RetrySettings {
	s.BaseBackoff = d
	return s
}

// Validate reports the first violated constraint, if any.
func (s RetrySettings) Validate() error {
	if s.MaxRetries < 0 {
		return errors.New("fetch: MaxRetries must be non-negative")
	}
	if s.RequestTimeout <= 0 {
		return errors.New("fetch: RequestTimeout must be positive")
	}
	if s.BaseBackoff <= 0 {
		return errors.New("fetch: BaseBackoff must be positive")
	}
	return nil
}
