package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client is a wrapper for HTTP client with rate limiting
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter

	maxRetries      int
	retryInterval   time.Duration
	maxRetryTimeout time.Duration
	logger          zerolog.Logger
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetries      int
	RetryInterval   time.Duration
	MaxRetryTimeout time.Duration
}

// FetchResult is the raw outcome of a request. Body is kept whatever the status.
type FetchResult struct {
	StatusCode int
	Body       []byte
}

// IsOK reports whether the status denotes success
func (r *FetchResult) IsOK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter:         rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		maxRetries:      opts.MaxRetries,
		retryInterval:   opts.RetryInterval,
		maxRetryTimeout: opts.MaxRetryTimeout,
		logger:          log.With().Str("component", "http_client").Logger(),
	}
}

// Fetch performs a GET with the given headers. A non-nil error means the
// transport failed; any HTTP status, including errors, comes back as a FetchResult.
// Transport errors, 429 and 5xx are retried up to MaxRetries times.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) (*FetchResult, error) {
	// Wait for rate limiter
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var result *FetchResult
	attempt := 0
	operation := func() error {
		attempt++
		result = nil

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("Request failed")
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		result = &FetchResult{StatusCode: resp.StatusCode, Body: body}
		if isRetryable(resp.StatusCode) {
			c.logger.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("Retryable status")
			return &HTTPStatusError{StatusCode: resp.StatusCode}
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.InitialInterval = c.retryInterval
	backoffStrategy.MaxElapsedTime = c.maxRetryTimeout

	strategy := backoff.WithContext(backoff.WithMaxRetries(backoffStrategy, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, strategy); err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && result != nil {
			// Retries exhausted on a status; let the caller see it
			return result, nil
		}
		return nil, err
	}

	return result, nil
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// HTTPStatusError represents a retryable non-success HTTP status code
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("retryable status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
