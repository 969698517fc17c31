package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/cache"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned when a newer query aborts an in-flight
// search. Callers drop the result instead of rendering stale hits over
// the newer query's.
var ErrSuperseded = errors.New("search: superseded by a newer query")

const (
	songLimit   = 25
	artistLimit = 4
)

// Service runs combined song and artist searches with a two-tier cache.
// Only one search is in flight per Service: starting a new one cancels
// its predecessor.
type Service struct {
	catalog *catalog.Client
	cache   *cache.SearchCache
	logger  vibee.Logger

	mu      sync.Mutex
	current *inflight
}

type inflight struct {
	cancel context.CancelFunc
}

// New creates the search service.
func New(cat *catalog.Client, c *cache.SearchCache, logger vibee.Logger) *Service {
	return &Service{catalog: cat, cache: c, logger: logger}
}

// Search fans out to the song and artist endpoints concurrently and
// returns the combined results. Cache hits short-circuit the network.
// One leg failing degrades to the other leg's results; both failing is
// an error. onRateLimit, when non-nil, is notified each time the song
// leg backs off a rate limit. Empty results are returned as-is and are
// never cached.
func (s *Service) Search(ctx context.Context, query string, onRateLimit func(httpx.RateLimitInfo)) (vibee.SearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return vibee.SearchResults{}, nil
	}

	if hit, ok := s.cache.Get(ctx, query); ok {
		return *hit, nil
	}

	parent := ctx
	runCtx, cancel := context.WithCancel(parent)
	run := s.begin(cancel)
	defer s.end(run)

	var (
		songs     []vibee.Song
		artists   []vibee.ArtistSearchResult
		songErr   error
		artistErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		songs, songErr = s.catalog.SearchSongs(runCtx, query, songLimit, httpx.Options{
			Retries:     2,
			OnRateLimit: onRateLimit,
		})
		return nil
	})
	g.Go(func() error {
		artists, artistErr = s.catalog.SearchArtists(runCtx, query, artistLimit, httpx.Options{Retries: 1})
		return nil
	})
	_ = g.Wait()

	if runCtx.Err() != nil {
		if err := parent.Err(); err != nil {
			return vibee.SearchResults{}, err
		}
		return vibee.SearchResults{}, ErrSuperseded
	}

	if songErr != nil && artistErr != nil {
		return vibee.SearchResults{}, songErr
	}
	if songErr != nil && s.logger != nil {
		s.logger.Warn("song search failed, serving artists only", "query", query, "error", songErr)
	}
	if artistErr != nil && s.logger != nil {
		s.logger.Warn("artist search failed, serving songs only", "query", query, "error", artistErr)
	}

	results := vibee.SearchResults{Artists: artists, Songs: songs}
	if !results.Empty() {
		s.cache.Put(parent, query, results)
	}
	return results, nil
}

// begin registers a new in-flight search, cancelling any predecessor.
func (s *Service) begin(cancel context.CancelFunc) *inflight {
	run := &inflight{cancel: cancel}
	s.mu.Lock()
	if s.current != nil {
		s.current.cancel()
	}
	s.current = run
	s.mu.Unlock()
	return run
}

// end releases run's registration unless a newer search already
// replaced it.
func (s *Service) end(run *inflight) {
	s.mu.Lock()
	if s.current == run {
		s.current = nil
	}
	s.mu.Unlock()
	run.cancel()
}
