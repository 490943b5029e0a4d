package transport

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Options configures the HTTP client.
type Options struct {
	// MaxAttempts is the total number of attempts for a retried request.
	// Default: 10
	MaxAttempts int

	// Timeout for individual requests.
	// Default: 60s
	Timeout time.Duration

	// RetryBackoff is the initial backoff duration between attempts.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// MaxConnections caps the number of simultaneous in-flight
	// requests to the remote host. The cap applies to every caller
	// sharing the client, including streamed downloads, which hold
	// their slot until the body is closed.
	// Default: 5
	MaxConnections int

	// RequestsPerSecond optionally rate-limits request starts.
	// 0 disables rate limiting.
	RequestsPerSecond float64

	// UserAgent is sent with every request.
	UserAgent string

	// HTTPClient optionally reuses an existing http.Client instead of
	// constructing one from Timeout.
	HTTPClient *http.Client
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     10,
		Timeout:         60 * time.Second,
		RetryBackoff:    time.Second,
		RetryMaxBackoff: 30 * time.Second,
		MaxConnections:  5,
		UserAgent:       "ckandump",
	}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// ExhaustedError is returned when every attempt of a retried request
// failed. It keeps the last response body (if any) so callers can
// still inspect an application-level error envelope.
type ExhaustedError struct {
	URL      string
	Attempts int
	Body     []byte
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Client performs HTTP GETs with retry, bounded concurrency and an
// optional rate limit. A single Client is shared by the catalog
// client and every concurrent downloader so the connection cap holds
// across the whole crawl.
type Client struct {
	client  *http.Client
	opts    Options
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewClient creates a new client with the given options. Zero-valued
// fields fall back to DefaultOptions.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = def.MaxConnections
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: opts.MaxConnections,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: opts.Timeout,
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		client:  httpClient,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConnections)),
		limiter: limiter,
	}
}

// Get performs a GET request with query parameters and extra headers,
// retrying on any connection fault or non-2xx status until the
// attempt budget runs out. Exhaustion is reported as *ExhaustedError;
// there is no silent empty-success fallback.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, header http.Header) ([]byte, error) {
	var (
		lastErr  error
		lastBody []byte
	)

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := Backoff(ctx, attempt-1, c.opts.RetryBackoff, c.opts.RetryMaxBackoff); err != nil {
				return nil, err
			}
		}

		body, err := c.get(ctx, rawURL, params, header)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		lastBody = body
	}

	return nil, &ExhaustedError{
		URL:      rawURL,
		Attempts: c.opts.MaxAttempts,
		Body:     lastBody,
		Err:      lastErr,
	}
}

// get performs one attempt. On a non-2xx status it returns the
// response body alongside the error so the caller can surface
// application-level failures after exhaustion.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values, header http.Header) ([]byte, error) {
	resp, err := c.do(ctx, rawURL, params, header)
	if err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}
	return body, nil
}

// Body is a streamed response. Close releases both the underlying
// body and the connection slot it holds.
type Body struct {
	io.ReadCloser

	// ContentLength is the declared length, or -1 when unknown.
	ContentLength int64

	release func()
}

// Close closes the stream and releases the connection slot.
func (b *Body) Close() error {
	err := b.ReadCloser.Close()
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return err
}

// Open performs a single streamed GET attempt. The caller owns the
// returned Body and must close it; the connection slot stays occupied
// until then. Retrying a whole streamed transfer is the caller's
// decision (see internal/download).
func (c *Client) Open(ctx context.Context, rawURL string) (*Body, error) {
	resp, err := c.do(ctx, rawURL, nil, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		c.sem.Release(1)
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	return &Body{
		ReadCloser:    resp.Body,
		ContentLength: resp.ContentLength,
		release:       func() { c.sem.Release(1) },
	}, nil
}

// do acquires a connection slot, waits for the rate limiter and
// issues the request. On success the caller is responsible for
// releasing the slot.
func (c *Client) do(ctx context.Context, rawURL string, params url.Values, header http.Header) (*http.Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.sem.Release(1)
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.sem.Release(1)
		return nil, fmt.Errorf("create request: %w", err)
	}
	if params != nil {
		q := req.URL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.sem.Release(1)
		return nil, err
	}
	return resp, nil
}

// Backoff waits for an exponentially increasing duration with jitter
// (0.5 to 1.5 of the computed backoff), or until ctx is done.
func Backoff(ctx context.Context, attempt int, base, max time.Duration) error {
	backoff := base * time.Duration(1<<uint(attempt-1))
	if backoff > max || backoff <= 0 {
		backoff = max
	}

	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}
