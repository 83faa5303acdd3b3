package fetch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"pricefeed/internal/platform/timer"
)

// maxErrorBody bounds how much of an error response body is kept for
// diagnostics.
const maxErrorBody = 1 << 10

// Doer issues a single HTTP request. *http.Client and the platform
// httpclient both satisfy it; retrying is owned by the Fetcher, so the Doer
// must not retry on its own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher orchestrates GET-and-decode attempts under the configured retry
// budget. Attempts of a single fetch are strictly sequential; a Fetcher is
// safe for concurrent use by multiple goroutines because it holds no
// per-call state.
type Fetcher struct {
	doer     Doer
	timer    timer.Timer
	settings RetrySettings
	log      *slog.Logger
	onRetry  func(attempt, total int, reason error)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDoer sets the HTTP transport capability.
func WithDoer(d Doer) Option {
	return func(f *Fetcher) {
		if d != nil {
			f.doer = d
		}
	}
}

// WithTimer selects the suspension primitives. The choice is made once at
// construction; the retry loop itself never branches on the runtime.
func WithTimer(tm timer.Timer) Option {
	return func(f *Fetcher) {
		if tm != nil {
			f.timer = tm
		}
	}
}

// WithSettings replaces the retry settings.
func WithSettings(s RetrySettings) Option {
	return func(f *Fetcher) { f.settings = s }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// WithOnRetry registers a sink invoked before each retry with the retry
// number, the total attempt budget and the failure that caused the retry.
func WithOnRetry(fn func(attempt, total int, reason error)) Option {
	return func(f *Fetcher) { f.onRetry = fn }
}

// New creates a Fetcher with default settings, the wall-clock timer and
// http.DefaultClient unless overridden.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		doer:     http.DefaultClient,
		timer:    timer.Wall(),
		settings: DefaultSettings(),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Settings returns the fetcher's retry settings.
func (f *Fetcher) Settings() RetrySettings { return f.settings }

// GetJSON fetches url and decodes the 2xx response body into T, retrying
// retryable failures with exponential backoff. It makes at most
// MaxRetries+1 attempts; each attempt runs under the per-attempt timeout
// and a losing attempt is abandoned with its connection closed. A terminal
// failure is returned immediately regardless of remaining budget; once the
// budget is spent the last retryable failure is wrapped in *ExhaustedError.
func GetJSON[T any](ctx context.Context, f *Fetcher, url string) (T, error) {
	var zero T
	if err := f.settings.Validate(); err != nil {
		return zero, err
	}

	total := f.settings.MaxRetries + 1
	var last error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt, f.settings.BaseBackoff)
			f.log.Warn("retrying request",
				slog.String("url", url),
				slog.Int("attempt", attempt+1),
				slog.Int("total", total),
				slog.Duration("backoff", delay),
				slog.Any("reason", last),
			)
			if f.onRetry != nil {
				f.onRetry(attempt, total, last)
			}
			if err := f.timer.Sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		v, err := timer.Race(ctx, f.timer, f.settings.RequestTimeout, func(ctx context.Context) (T, error) {
			return getJSONOnce[T](ctx, f.doer, url)
		})
		if err == nil {
			return v, nil
		}
		if Classify(err) == Terminal {
			return zero, err
		}
		last = err
		if attempt >= f.settings.MaxRetries {
			return zero, &ExhaustedError{URL: url, Attempts: total, Last: last}
		}
	}
}

// getJSONOnce performs exactly one attempt: send GET, check the status,
// decode the body.
func getJSONOnce[T any](ctx context.Context, d Doer, url string) (T, error) {
	var zero T
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.Do(req)
	if err != nil {
		return zero, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return zero, &StatusError{URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return zero, &DecodeError{URL: url, Err: err}
	}
	return v, nil
}
