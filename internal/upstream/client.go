// Package upstream performs the outbound HTTP calls behind every hot list.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/cache"
)

const (
	DefaultTimeout   = 6 * time.Second
	DefaultRetries   = 1
	DefaultBackoff   = 300 * time.Millisecond
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	maxBodyBytes = 10 << 20
)

// Request describes one upstream call
type Request struct {
	Method  string
	URL     string
	Params  map[string]string
	Headers map[string]string
	// Ignore lists params that do not change the response (signatures, nonces)
	Ignore []string
}

// Descriptor converts the request into the cache's key input
func (r Request) Descriptor() cache.Descriptor {
	return cache.Descriptor{Method: r.Method, URL: r.URL, Params: r.Params, Ignore: r.Ignore}
}

// Key derives the cache key for this request
func (r Request) Key() cache.Key {
	return cache.DeriveKey(r.Descriptor())
}

// Client fetches raw upstream bodies
type Client struct {
	http      *http.Client
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	userAgent string
	logger    zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:      http.DefaultClient,
		timeout:   DefaultTimeout,
		retries:   DefaultRetries,
		backoff:   DefaultBackoff,
		userAgent: DefaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do performs the request, retrying retryable failures up to the configured
// count with linear backoff.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug().Err(lastErr).Str("url", req.URL).Int("attempt", attempt).Msg("retrying upstream request")
			timer := time.NewTimer(time.Duration(attempt) * c.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, platformerrors.Wrap(ctx.Err(), contextCode(ctx.Err()), "upstream request cancelled")
			case <-timer.C:
			}
		}

		body, err := c.do(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !platformerrors.IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, r Request) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, platformerrors.Wrapf(err, platformerrors.CodeInvalidInput, "invalid upstream url %q", r.URL)
	}
	q := u.Query()
	for k, v := range r.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "build upstream request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, u)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(err, u)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(method, resp.StatusCode, u, body)
	}
	return body, nil
}

// contextCode maps a context error: deadlines are timeouts, a cancellation
// by the caller is not retryable.
func contextCode(err error) platformerrors.ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return platformerrors.CodeTimeout
	}
	return platformerrors.CodeExecutionFailed
}

func classifyTransportError(err error, u *url.URL) error {
	code := platformerrors.CodeNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = contextCode(err)
	case errors.As(err, &netErr) && netErr.Timeout():
		code = platformerrors.CodeTimeout
	}
	return platformerrors.WithContext(
		platformerrors.Wrapf(err, code, "request to %s failed", u.Host),
		"url", u.String(),
	)
}

func statusError(method string, status int, u *url.URL, body []byte) error {
	var code platformerrors.ErrorCode
	switch {
	case status == http.StatusTooManyRequests:
		code = platformerrors.CodeRateLimit
	case status == http.StatusNotFound:
		code = platformerrors.CodeNotFound
	case status >= 500:
		code = platformerrors.CodeUnavailable
	default:
		code = platformerrors.CodeInvalidInput
	}

	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	err := platformerrors.Newf(code, "%s %s: %d %s", method, u.Host, status, http.StatusText(status))
	err = platformerrors.WithContext(err, "url", u.String())
	err = platformerrors.WithContext(err, "status", status)
	return platformerrors.WithContext(err, "body", snippet)
}

// String helps in logs
func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}
