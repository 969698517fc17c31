package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"github.com/vibeelabs/vibee-go/vibee"
)

const (
	defaultRetries = 3
	defaultTimeout = 15 * time.Second
	minBackoff     = 800 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// ErrRateLimited marks a 429 response. The retry loop honors the
// server's Retry-After before surfacing this to callers.
var ErrRateLimited = errors.New("httpx: rate limited")

// StatusError is a non-2xx, non-429 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: unexpected status %d from %s", e.Code, e.URL)
}

// RateLimitInfo is passed to the OnRateLimit callback before each
// rate-limit wait, so callers can surface the delay to the user.
type RateLimitInfo struct {
	WaitSeconds int
	Attempt     int
	Retries     int
}

// Options tunes a single FetchJSON call. Zero values fall back to the
// client defaults (3 retries, 15s per-attempt timeout).
type Options struct {
	Retries     int
	Timeout     time.Duration
	OnRateLimit func(RateLimitInfo)
}

// Client provides resilient JSON GET calls with retry, exponential
// backoff and a circuit breaker.
type Client struct {
	http    *http.Client
	retry   *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	sleep   func(ctx context.Context, d time.Duration) error
	logger  vibee.Logger
}

// New creates a Client with retry and circuit breaker.
func New(logger vibee.Logger) *Client {
	retry := retryablehttp.NewClient()
	retry.Logger = nil

	settings := gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &Client{
		http:    &http.Client{},
		retry:   retry,
		breaker: gobreaker.NewCircuitBreaker(settings),
		sleep:   sleepContext,
		logger:  logger,
	}
}

// FetchJSON GETs url and returns the raw response body. Failed attempts
// are retried with exponential backoff; 429 responses wait out the
// server's Retry-After instead and report the delay through
// opts.OnRateLimit. The last attempt's error is returned on exhaustion.
func (c *Client) FetchJSON(ctx context.Context, url string, opts Options) (json.RawMessage, error) {
	var body json.RawMessage
	_, err := c.breaker.Execute(func() (interface{}, error) {
		b, err := c.fetchWithRetry(ctx, url, opts)
		if err != nil {
			return nil, err
		}
		body = b
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, url string, opts Options) ([]byte, error) {
	retries := opts.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, retryAfter, err := c.attempt(ctx, url, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt == retries {
			break
		}

		wait := c.retry.Backoff(minBackoff, maxBackoff, attempt, nil)
		if errors.Is(err, ErrRateLimited) {
			if retryAfter > 0 {
				wait = retryAfter
			}
			if opts.OnRateLimit != nil {
				opts.OnRateLimit(RateLimitInfo{
					WaitSeconds: int(math.Ceil(wait.Seconds())),
					Attempt:     attempt + 1,
					Retries:     retries,
				})
			}
			if c.logger != nil {
				c.logger.Warn("rate limited, backing off", "url", url, "wait", wait, "attempt", attempt+1)
			}
		}

		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("httpx: request failed")
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, url string, timeout time.Duration) ([]byte, time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, 0, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, 0, nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
