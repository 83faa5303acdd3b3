// Package httpclient provides the tuned HTTP transport the fetch layer
// sends requests through. The client deliberately does not retry: the retry
// loop, classification and per-attempt timeout live in internal/fetch, and
// the transport's connection pool is shared safely across concurrent
// fetches.
package httpclient

import (
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"time"
)

// Client wraps http.Client with logging and default headers.
type Client struct {
	hc          *stdhttp.Client
	log         *slog.Logger
	headers     map[string]string
	urlRedactor func(*url.URL) string
}

// Option configures Client.
type Option func(*Client)

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHeaders adds default headers to each request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			if c.headers == nil {
				c.headers = make(map[string]string)
			}
			c.headers[k] = v
		}
	}
}

// WithURLRedactor sets URL redactor for logs.
func WithURLRedactor(f func(*url.URL) string) Option {
	return func(c *Client) { c.urlRedactor = f }
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// New creates configured Client. The per-attempt deadline is enforced by
// the caller's timeout race, so the underlying http.Client carries no
// overall timeout of its own; only the handshake and header stages are
// bounded here.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxConnsPerHost = 100
	tr.MaxIdleConnsPerHost = 100
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 10 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second

	c := &Client{
		hc:  &stdhttp.Client{Transport: tr},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// redactURL returns redacted URL string.
func (c *Client) redactURL(u *url.URL) string {
	if c.urlRedactor != nil {
		return c.urlRedactor(u)
	}
	return u.Redacted()
}

// Do sends one HTTP request, applying default headers and logging the
// outcome. The request's context carries cancellation from the caller;
// cancelling it aborts the request and closes the in-flight connection.
func (c *Client) Do(req *stdhttp.Request) (*stdhttp.Response, error) {
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	u := c.redactURL(req.URL)
	start := time.Now()
	resp, err := c.hc.Do(req)
	dur := time.Since(start)
	if err != nil {
		c.log.Warn("http request error",
			slog.String("method", req.Method),
			slog.String("url", u),
			slog.Duration("dur", dur),
			slog.Any("error", err),
		)
		return nil, err
	}
	c.log.Debug("http request",
		slog.String("method", req.Method),
		slog.String("url", u),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", dur),
	)
	return resp, nil
}

// CloseIdleConnections releases pooled connections, for shutdown.
func (c *Client) CloseIdleConnections() {
	c.hc.CloseIdleConnections()
}
