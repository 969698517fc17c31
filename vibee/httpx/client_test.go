package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() (*Client, *[]time.Duration) {
	c := New(nil)
	waits := &[]time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return c, waits
}

func TestFetchJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, waits := newTestClient()
	body, err := c.FetchJSON(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Empty(t, *waits)
}

func TestFetchJSONRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, waits := newTestClient()
	var limits []RateLimitInfo
	body, err := c.FetchJSON(context.Background(), srv.URL, Options{
		OnRateLimit: func(info RateLimitInfo) { limits = append(limits, info) },
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	// Both 429s waited out the advertised Retry-After, not the default backoff.
	require.Len(t, *waits, 2)
	assert.Equal(t, 2*time.Second, (*waits)[0])
	assert.Equal(t, 2*time.Second, (*waits)[1])

	require.Len(t, limits, 2)
	assert.Equal(t, 2, limits[0].WaitSeconds)
	assert.Equal(t, 1, limits[0].Attempt)
	assert.Equal(t, 2, limits[1].Attempt)
}

func TestFetchJSONBackoffWithoutRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, waits := newTestClient()
	_, err := c.FetchJSON(context.Background(), srv.URL, Options{})
	require.NoError(t, err)

	require.Len(t, *waits, 1)
	assert.Equal(t, 800*time.Millisecond, (*waits)[0])
}

func TestFetchJSONExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := newTestClient()
	_, err := c.FetchJSON(context.Background(), srv.URL, Options{Retries: 2})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestFetchJSONContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(nil)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := c.FetchJSON(context.Background(), srv.URL, Options{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchJSONExhaustedRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestClient()
	_, err := c.FetchJSON(context.Background(), srv.URL, Options{Retries: 1})
	assert.True(t, errors.Is(err, ErrRateLimited))
}
