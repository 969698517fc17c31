package sections

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
)

// catalogStub serves canned song lists per query and records traffic.
type catalogStub struct {
	mu        sync.Mutex
	requests  []string
	responses map[string][]string // query -> song ids
	failures  map[string]bool     // query -> respond 500
}

func newCatalogStub() *catalogStub {
	return &catalogStub{
		responses: make(map[string][]string),
		failures:  make(map[string]bool),
	}
}

func (s *catalogStub) handler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	s.mu.Lock()
	s.requests = append(s.requests, query)
	ids := s.responses[query]
	fail := s.failures[query]
	s.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	records := make([]string, 0, len(ids))
	for _, id := range ids {
		records = append(records, fmt.Sprintf(`{"id":%q,"name":%q}`, id, "Song "+id))
	}
	fmt.Fprintf(w, `{"data":{"results":[%s]}}`, strings.Join(records, ","))
}

func (s *catalogStub) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestFetcher(t *testing.T, stub *catalogStub) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	f := NewFetcher(catalog.NewClient(httpx.New(nil), srv.URL, nil), nil)
	f.shuffle = func(n int, swap func(i, j int)) {}
	return f
}

func TestQualifyQuery(t *testing.T) {
	assert.Equal(t, "tamil songs 2022", qualifyQuery("2022", "tamil"))
	assert.Equal(t, "tamil songs 2021", qualifyQuery("tamil songs 2021", "tamil"))
	assert.Equal(t, "Tamil hits", qualifyQuery("Tamil hits", "tamil"))
	assert.Equal(t, "bare", qualifyQuery("bare", ""))
}

func TestFetchSectionDedupeFirstWins(t *testing.T) {
	stub := newCatalogStub()
	stub.responses["tamil songs 2021"] = []string{"a", "b"}
	stub.responses["tamil songs 2022"] = []string{"b", "c"}
	f := newTestFetcher(t, stub)

	songs := f.FetchSection(context.Background(), "tamil songs 2021,2022", "tamil", 15)
	require.Len(t, songs, 3)
	assert.Equal(t, "a", songs[0].ID)
	assert.Equal(t, "b", songs[1].ID)
	assert.Equal(t, "c", songs[2].ID)
}

func TestFetchSectionPartialFailure(t *testing.T) {
	stub := newCatalogStub()
	stub.responses["tamil songs 2021"] = []string{"a"}
	stub.failures["tamil songs 2022"] = true
	f := newTestFetcher(t, stub)

	songs := f.FetchSection(context.Background(), "tamil songs 2021,2022", "tamil", 15)
	require.Len(t, songs, 1)
	assert.Equal(t, "a", songs[0].ID)
}

func TestFetchSectionAllSourcesEmpty(t *testing.T) {
	stub := newCatalogStub()
	f := newTestFetcher(t, stub)

	songs := f.FetchSection(context.Background(), "tamil songs 2021,2022", "tamil", 15)
	assert.Empty(t, songs)
}

func TestFetchSectionSkipsRecordsWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"results":[{"name":"no id"},{"id":"ok","name":"Has ID"}]}}`))
	}))
	defer srv.Close()

	f := NewFetcher(catalog.NewClient(httpx.New(nil), srv.URL, nil), nil)
	f.shuffle = func(n int, swap func(i, j int)) {}

	songs := f.FetchSection(context.Background(), "anything", "tamil", 15)
	require.Len(t, songs, 1)
	assert.Equal(t, "ok", songs[0].ID)
}

func TestFetchSectionEmptyQuery(t *testing.T) {
	stub := newCatalogStub()
	f := newTestFetcher(t, stub)

	assert.Empty(t, f.FetchSection(context.Background(), " , ", "tamil", 15))
	assert.Zero(t, stub.requestCount())
}
