package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
)

// queryServer serves canned results per query and records every query
// it sees, in order.
type queryServer struct {
	mu      sync.Mutex
	queries []string
	hits    map[string]string // query -> song id
}

func newQueryServer(hits map[string]string) *queryServer {
	return &queryServer{hits: hits}
}

func (s *queryServer) handler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	s.mu.Lock()
	s.queries = append(s.queries, query)
	id, ok := s.hits[query]
	s.mu.Unlock()

	if !ok {
		w.Write([]byte(`{"data":{"results":[]}}`))
		return
	}
	fmt.Fprintf(w, `{"data":{"results":[{"id":%q,"name":%q}]}}`, id, "Song "+id)
}

func (s *queryServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func newTestResolver(t *testing.T, qs *queryServer, rec vibee.Recommender) *Resolver {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(qs.handler))
	t.Cleanup(srv.Close)
	cat := catalog.NewClient(httpx.New(nil), srv.URL, nil)
	return New(cat, rec, 2, 1, nil)
}

type stubRecommender struct {
	recs []vibee.Recommendation
	err  error
}

func (s *stubRecommender) Recommend(ctx context.Context, prompt string, count int) ([]vibee.Recommendation, error) {
	return s.recs, s.err
}

func TestCleanSearchQuery(t *testing.T) {
	cases := map[string]string{
		"Kutti Story (From \"Master\") - Anirudh": "Kutti Story Anirudh",
		"Track [Remastered 2009]":                 "Track",
		"plain  spaced   query":                   "plain spaced query",
		"a-b-c":                                   "a b c",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanSearchQuery(in))
	}
}

func TestFallbackStopsAtFirstHit(t *testing.T) {
	// Strategy (a) misses, (b) hits; (c) must never run.
	qs := newQueryServer(map[string]string{
		"Vaathi Coming": "hit1",
	})
	r := newTestResolver(t, qs, nil)

	songs, err := r.ResolveRecommendations(context.Background(), []vibee.Recommendation{
		{Track: "Vaathi Coming (Live)", Artist: "Anirudh X"},
	}, "tamil", nil)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "hit1", songs[0].ID)

	seen := qs.seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "Vaathi Coming Anirudh X", seen[0])
	assert.Equal(t, "Vaathi Coming", seen[1])
}

func TestFallbackLanguageStrategy(t *testing.T) {
	qs := newQueryServer(map[string]string{
		"Obscure Track tamil": "hit2",
	})
	r := newTestResolver(t, qs, nil)

	songs, err := r.ResolveRecommendations(context.Background(), []vibee.Recommendation{
		{Track: "Obscure Track", Artist: "Nobody"},
	}, "tamil", nil)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "hit2", songs[0].ID)

	seen := qs.seen()
	require.Len(t, seen, 3)
	assert.Equal(t, "Obscure Track Nobody", seen[0])
	assert.Equal(t, "Obscure Track", seen[1])
	assert.Equal(t, "Obscure Track tamil", seen[2])
}

func TestFallbackSkipsTrackOnlyWithoutArtist(t *testing.T) {
	qs := newQueryServer(nil)
	r := newTestResolver(t, qs, nil)

	songs, err := r.ResolveRecommendations(context.Background(), []vibee.Recommendation{
		{Track: "Lonely Track"},
	}, "tamil", nil)
	require.NoError(t, err)
	assert.Empty(t, songs)

	// No artist: strategy (b) is identical to (a) and must be skipped.
	seen := qs.seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "Lonely Track", seen[0])
	assert.Equal(t, "Lonely Track tamil", seen[1])
}

func TestResolveBatchesStreamsAndKeepsOrder(t *testing.T) {
	qs := newQueryServer(map[string]string{
		"T1 A1": "s1",
		"T2 A2": "s2",
		"T3 A3": "s3",
	})
	r := newTestResolver(t, qs, nil)

	var batches [][]vibee.Song
	songs, err := r.ResolveRecommendations(context.Background(), []vibee.Recommendation{
		{Track: "T1", Artist: "A1"},
		{Track: "T2", Artist: "A2"},
		{Track: "T3", Artist: "A3"},
	}, "tamil", func(batch []vibee.Song) {
		batches = append(batches, batch)
	})
	require.NoError(t, err)
	require.Len(t, songs, 3)
	// Order follows the recommendation order even though lookups inside
	// a batch run concurrently.
	assert.Equal(t, "s1", songs[0].ID)
	assert.Equal(t, "s2", songs[1].ID)
	assert.Equal(t, "s3", songs[2].ID)

	// Batch size 2: one full batch then the remainder.
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
}

func TestResolveVibe(t *testing.T) {
	qs := newQueryServer(map[string]string{
		"T1 A1": "s1",
	})
	rec := &stubRecommender{recs: []vibee.Recommendation{
		{Track: "T1", Artist: "A1"},
		{Track: "Missing", Artist: "Gone"},
	}}
	r := newTestResolver(t, qs, rec)

	songs, err := r.ResolveVibe(context.Background(), "chill", "tamil", 10)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "s1", songs[0].ID)
}

func TestResolveVibeNilRecommender(t *testing.T) {
	r := newTestResolver(t, newQueryServer(nil), nil)
	songs, err := r.ResolveVibe(context.Background(), "chill", "tamil", 10)
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestResolveArtistSongsFallsBackToBareName(t *testing.T) {
	qs := newQueryServer(map[string]string{
		"Dhee": "a1",
	})
	r := newTestResolver(t, qs, nil)

	songs, err := r.ResolveArtistSongs(context.Background(), "Dhee", "tamil")
	require.NoError(t, err)
	require.Len(t, songs, 1)

	seen := qs.seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "Dhee tamil", seen[0])
	assert.Equal(t, "Dhee", seen[1])
}
