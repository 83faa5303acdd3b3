package fetch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pricefeed/internal/fetch"
	"pricefeed/internal/platform/timer"

	"github.com/stretchr/testify/require"
)

// recordingTimer records sleeps without actually sleeping and never fires
// the race deadline, so tests are deterministic and fast.
type recordingTimer struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordingTimer) Now() time.Time { return time.Now() }

func (r *recordingTimer) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func (r *recordingTimer) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *recordingTimer) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

// expiredTimer makes every race lose immediately, simulating a per-attempt
// timeout on each try.
type expiredTimer struct{ recordingTimer }

func (e *expiredTimer) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

type todo struct {
	ID int `json:"id"`
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetJSON_FirstAttemptSuccess(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	tm := &recordingTimer{}
	f := fetch.New(fetch.WithTimer(tm), fetch.WithLogger(newTestLogger()))

	got, err := fetch.GetJSON[todo](context.Background(), f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, todo{ID: 1}, got)
	require.Equal(t, 1, attempts)
	require.Empty(t, tm.recorded(), "a first-attempt success must not sleep")
}

func TestGetJSON_ClientErrorIsTerminal(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "no such token", http.StatusNotFound)
	}))
	defer srv.Close()

	tm := &recordingTimer{}
	f := fetch.New(fetch.WithTimer(tm), fetch.WithLogger(newTestLogger()))

	_, err := fetch.GetJSON[todo](context.Background(), f, srv.URL)
	var statusErr *fetch.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.Equal(t, 1, attempts, "a 4xx must fail after exactly one attempt")
	require.Empty(t, tm.recorded())
}

func TestGetJSON_RetriesThenSucceeds(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	tm := &recordingTimer{}
	f := fetch.New(
		fetch.WithTimer(tm),
		fetch.WithLogger(newTestLogger()),
		fetch.WithSettings(fetch.DefaultSettings().WithBaseBackoff(100*time.Millisecond)),
	)

	got, err := fetch.GetJSON[todo](context.Background(), f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, todo{ID: 7}, got)
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, tm.recorded())
}

func TestGetJSON_ExhaustsBudget(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := fetch.New(
		fetch.WithTimer(&recordingTimer{}),
		fetch.WithLogger(newTestLogger()),
		fetch.WithSettings(fetch.DefaultSettings().WithMaxRetries(2)),
	)

	_, err := fetch.GetJSON[todo](context.Background(), f, srv.URL)
	var exhausted *fetch.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)
	require.Equal(t, 3, attempts)
	require.Contains(t, err.Error(), "3 attempts")
	require.Contains(t, err.Error(), "503")

	var statusErr *fetch.StatusError
	require.ErrorAs(t, err, &statusErr, "the last failure must stay reachable through the chain")
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestGetJSON_ZeroRetries(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := fetch.New(
		fetch.WithTimer(&recordingTimer{}),
		fetch.WithLogger(newTestLogger()),
		fetch.WithSettings(fetch.DefaultSettings().WithMaxRetries(0)),
	)

	_, err := fetch.GetJSON[todo](context.Background(), f, srv.URL)
	var exhausted *fetch.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 1, exhausted.Attempts)
	require.Equal(t, 1, attempts)
}

func TestGetJSON_DecodeErrorIsTerminal(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	f := fetch.New(fetch.WithTimer(&recordingTimer{}), fetch.WithLogger(newTestLogger()))

	_, err := fetch.GetJSON[todo](context.Background(), f, srv.URL)
	var decodeErr *fetch.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, 1, attempts, "an undecodable body must not be retried")
}

type failingDoer struct {
	calls int
	err   error
}

func (d *failingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, d.err
}

func TestGetJSON_TransportErrorRetried(t *testing.T) {
	doer := &failingDoer{err: errors.New("connection refused")}
	f := fetch.New(
		fetch.WithDoer(doer),
		fetch.WithTimer(&recordingTimer{}),
		fetch.WithLogger(newTestLogger()),
		fetch.WithSettings(fetch.DefaultSettings().WithMaxRetries(1)),
	)

	_, err := fetch.GetJSON[todo](context.Background(), f, "http://unreachable.invalid")
	var exhausted *fetch.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 2, doer.calls)

	var transportErr *fetch.TransportError
	require.ErrorAs(t, err, &transportErr)
}

// blockingDoer completes only when the request context is cancelled.
type blockingDoer struct {
	mu        sync.Mutex
	cancelled int
}

func (d *blockingDoer) Do(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	d.mu.Lock()
	d.cancelled++
	d.mu.Unlock()
	return nil, req.Context().Err()
}

func TestGetJSON_TimeoutRetriedAndCancelled(t *testing.T) {
	doer := &blockingDoer{}
	f := fetch.New(
		fetch.WithDoer(doer),
		fetch.WithTimer(&expiredTimer{}),
		fetch.WithLogger(newTestLogger()),
		fetch.WithSettings(fetch.DefaultSettings().WithMaxRetries(2)),
	)

	_, err := fetch.GetJSON[todo](context.Background(), f, "http://slow.invalid")
	var exhausted *fetch.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)

	var timeoutErr *timer.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	// Every losing attempt must have been cancelled.
	require.Eventually(t, func() bool {
		doer.mu.Lock()
		defer doer.mu.Unlock()
		return doer.cancelled == 3
	}, time.Second, time.Millisecond)
}

func TestGetJSON_OnRetrySink(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"id":2}`))
	}))
	defer srv.Close()

	type retryCall struct {
		attempt, total int
		reason         error
	}
	var calls []retryCall
	f := fetch.New(
		fetch.WithTimer(&recordingTimer{}),
		fetch.WithLogger(newTestLogger()),
		fetch.WithOnRetry(func(attempt, total int, reason error) {
			calls = append(calls, retryCall{attempt, total, reason})
		}),
	)

	_, err := fetch.GetJSON[todo](context.Background(), f, srv.URL)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.Equal(t, 1, calls[0].attempt)
	require.Equal(t, 4, calls[0].total)

	var statusErr *fetch.StatusError
	require.ErrorAs(t, calls[0].reason, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestGetJSON_InvalidSettings(t *testing.T) {
	f := fetch.New(fetch.WithSettings(fetch.DefaultSettings().WithMaxRetries(-1)))
	_, err := fetch.GetJSON[todo](context.Background(), f, "http://example.invalid")
	require.Error(t, err)
}
