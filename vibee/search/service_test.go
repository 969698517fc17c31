package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeelabs/vibee-go/vibee/cache"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
)

type searchStub struct {
	mu        sync.Mutex
	songHits  map[string][]string // query -> song ids
	artistIDs map[string][]string // query -> artist ids
	songCalls int32
	songFail  bool
	artFail   bool

	rateLimitOnce atomic.Bool // first song call answers 429 when set

	blockQuery string // song query that blocks until unblock closes
	started    chan struct{}
	unblock    chan struct{}
}

func newSearchStub() *searchStub {
	return &searchStub{
		songHits:  make(map[string][]string),
		artistIDs: make(map[string][]string),
		started:   make(chan struct{}, 8),
		unblock:   make(chan struct{}),
	}
}

func (s *searchStub) handler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	switch {
	case strings.HasPrefix(r.URL.Path, "/search/songs"):
		atomic.AddInt32(&s.songCalls, 1)
		if s.blockQuery != "" && query == s.blockQuery {
			s.started <- struct{}{}
			select {
			case <-s.unblock:
			case <-r.Context().Done():
			}
		}
		if s.rateLimitOnce.CompareAndSwap(true, false) {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if s.songFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResults(w, s.lookup(s.songHits, query), "Song")
	case strings.HasPrefix(r.URL.Path, "/search/artists"):
		if s.artFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResults(w, s.lookup(s.artistIDs, query), "Artist")
	default:
		http.NotFound(w, r)
	}
}

func (s *searchStub) lookup(m map[string][]string, query string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return m[query]
}

func writeResults(w http.ResponseWriter, ids []string, prefix string) {
	records := make([]string, 0, len(ids))
	for _, id := range ids {
		records = append(records, fmt.Sprintf(`{"id":%q,"name":%q}`, id, prefix+" "+id))
	}
	fmt.Fprintf(w, `{"data":{"results":[%s]}}`, strings.Join(records, ","))
}

func newTestSearch(t *testing.T, stub *searchStub) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	cat := catalog.NewClient(httpx.New(nil), srv.URL, nil)
	return New(cat, cache.NewSearchCache(nil, time.Hour, nil), nil)
}

func TestSearchCombinesSongsAndArtists(t *testing.T) {
	stub := newSearchStub()
	stub.songHits["kutti"] = []string{"s1", "s2"}
	stub.artistIDs["kutti"] = []string{"a1"}
	svc := newTestSearch(t, stub)

	results, err := svc.Search(context.Background(), "kutti", nil)
	require.NoError(t, err)
	require.Len(t, results.Songs, 2)
	require.Len(t, results.Artists, 1)
	assert.Equal(t, "a1", results.Artists[0].ID)
	assert.False(t, results.Empty())
}

func TestSearchEmptyQueryIsNoop(t *testing.T) {
	stub := newSearchStub()
	svc := newTestSearch(t, stub)

	results, err := svc.Search(context.Background(), "   ", nil)
	require.NoError(t, err)
	assert.True(t, results.Empty())
	assert.Zero(t, atomic.LoadInt32(&stub.songCalls))
}

func TestSearchCacheHit(t *testing.T) {
	stub := newSearchStub()
	stub.songHits["kutti"] = []string{"s1"}
	svc := newTestSearch(t, stub)

	_, err := svc.Search(context.Background(), "kutti", nil)
	require.NoError(t, err)
	calls := atomic.LoadInt32(&stub.songCalls)

	// Same query modulo case and whitespace shares the cache entry.
	results, err := svc.Search(context.Background(), "  Kutti ", nil)
	require.NoError(t, err)
	require.Len(t, results.Songs, 1)
	assert.Equal(t, calls, atomic.LoadInt32(&stub.songCalls))
}

func TestSearchEmptyResultsNotCached(t *testing.T) {
	stub := newSearchStub()
	svc := newTestSearch(t, stub)

	results, err := svc.Search(context.Background(), "nothing here", nil)
	require.NoError(t, err)
	assert.True(t, results.Empty())

	_, err = svc.Search(context.Background(), "nothing here", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.songCalls))
}

func TestSearchSupersededByNewerQuery(t *testing.T) {
	stub := newSearchStub()
	stub.blockQuery = "slow query"
	stub.songHits["fast"] = []string{"s1"}
	svc := newTestSearch(t, stub)
	defer close(stub.unblock)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Search(context.Background(), "slow query", nil)
		errCh <- err
	}()

	<-stub.started
	results, err := svc.Search(context.Background(), "fast", nil)
	require.NoError(t, err)
	require.Len(t, results.Songs, 1)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("superseded search never returned")
	}
}

func TestSearchRateLimitNotifies(t *testing.T) {
	stub := newSearchStub()
	stub.songHits["busy"] = []string{"s1"}
	stub.rateLimitOnce.Store(true)
	svc := newTestSearch(t, stub)

	var notices []httpx.RateLimitInfo
	results, err := svc.Search(context.Background(), "busy", func(info httpx.RateLimitInfo) {
		notices = append(notices, info)
	})
	require.NoError(t, err)
	require.Len(t, results.Songs, 1)

	require.Len(t, notices, 1)
	assert.Equal(t, 1, notices[0].WaitSeconds)
	assert.Equal(t, 1, notices[0].Attempt)
}

func TestSearchDegradesWhenOneLegFails(t *testing.T) {
	stub := newSearchStub()
	stub.songHits["kutti"] = []string{"s1"}
	stub.artFail = true
	svc := newTestSearch(t, stub)

	results, err := svc.Search(context.Background(), "kutti", nil)
	require.NoError(t, err)
	require.Len(t, results.Songs, 1)
	assert.Empty(t, results.Artists)
}

func TestSearchBothLegsFailing(t *testing.T) {
	stub := newSearchStub()
	stub.songFail = true
	stub.artFail = true
	svc := newTestSearch(t, stub)

	_, err := svc.Search(context.Background(), "kutti", nil)
	require.Error(t, err)

	var catErr *catalog.CatalogError
	assert.ErrorAs(t, err, &catErr)
}
