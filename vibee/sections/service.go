package sections

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/cache"
	"github.com/vibeelabs/vibee-go/vibee/resolver"
	"golang.org/x/sync/errgroup"
)

// ErrAllSourcesFailed means every section source came back empty during
// a refresh; callers show "Failed to load sections, please try again".
var ErrAllSourcesFailed = errors.New("sections: all sources failed")

const (
	trendingCap = 20
	forYouCap   = 20
	moodCap     = 10

	sectionQueryLimit = 15
	expandQueryLimit  = 20

	maxPersonalArtists     = 5
	songsPerPersonalArtist = 3
)

// trendingQuery and friends are the year buckets behind each section.
const (
	trendingQuery = "%s songs 2021,2022,2024,2023,2025"
	popularQuery  = "%s popular songs"
	warmupQuery   = "%s songs 2025"
)

var expandQueries = map[string]string{
	"Trending Songs": trendingQuery,
	"Chill Songs":    "%s songs 2020,2019,2018,2017,2016",
	"Love Songs":     "%s songs 2015,2014,2013,2012,2011",
	"Melody Songs":   "%s songs 2010,2009,2008,2007,2006",
	"Songs for You":  popularQuery,
}

// FollowSource yields the user's followed artists for personalization.
// store.Repository satisfies it.
type FollowSource interface {
	FollowedArtists(ctx context.Context) ([]vibee.ArtistSearchResult, error)
}

// Config tunes the section service.
type Config struct {
	DefaultLanguage string
	Languages       []string
	WarmupLanguages int
	WarmupDelay     time.Duration
}

// Service orchestrates the home screen sections: fast query-based
// sections first, mood sections resolving independently behind them,
// with a two-tier cache per language and a one-time background warm-up
// of other languages.
type Service struct {
	fetcher  *Fetcher
	resolver *resolver.Resolver
	cache    *cache.SectionCache
	follows  FollowSource
	pool     vibee.WorkerPool
	logger   vibee.Logger
	cfg      Config
	warmedUp atomic.Bool
	shuffle  func(n int, swap func(i, j int))
	sleep    func(d time.Duration)
}

// NewService creates the section service.
func NewService(f *Fetcher, r *resolver.Resolver, c *cache.SectionCache, follows FollowSource, pool vibee.WorkerPool, cfg Config, logger vibee.Logger) *Service {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = vibee.Languages[0]
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = vibee.Languages
	}
	if cfg.WarmupLanguages <= 0 {
		cfg.WarmupLanguages = 3
	}
	if cfg.WarmupDelay <= 0 {
		cfg.WarmupDelay = 3 * time.Second
	}
	return &Service{
		fetcher:  f,
		resolver: r,
		cache:    c,
		follows:  follows,
		pool:     pool,
		logger:   logger,
		cfg:      cfg,
		shuffle:  rand.Shuffle,
		sleep:    time.Sleep,
	}
}

// Sections returns the section set for lang. Cached sets are served
// directly; otherwise a refresh runs: the fast sections land first and
// each mood section updates the snapshot as it resolves. onUpdate, when
// non-nil, receives every intermediate snapshot (calls are serialized)
// and the final set is returned once all moods settle.
func (s *Service) Sections(ctx context.Context, lang string, onUpdate func(vibee.SectionSet)) (vibee.SectionSet, error) {
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}

	if set, ok := s.cache.GetMemory(lang); ok {
		return set, nil
	}
	if set, ok := s.cache.Get(ctx, lang); ok {
		return set, nil
	}

	var updateMu sync.Mutex
	emit := func(set vibee.SectionSet) {
		if onUpdate == nil {
			return
		}
		updateMu.Lock()
		defer updateMu.Unlock()
		onUpdate(set)
	}

	// Stage 1: fast query-based sections.
	var trending, popular []vibee.Song
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trending = s.fetcher.FetchSection(gctx, fmt.Sprintf(trendingQuery, lang), lang, sectionQueryLimit)
		return nil
	})
	g.Go(func() error {
		popular = s.fetcher.FetchSection(gctx, fmt.Sprintf(popularQuery, lang), lang, sectionQueryLimit)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forYou := append(s.followedArtistSongs(ctx, lang), popular...)
	s.shuffle(len(forYou), func(i, j int) { forYou[i], forYou[j] = forYou[j], forYou[i] })

	initial := vibee.EmptySectionSet()
	initial[vibee.MoodTrending] = dedupeSeen(trending, make(map[string]struct{}), trendingCap)
	initial[vibee.MoodSongsForYou] = dedupeSeen(forYou, make(map[string]struct{}), forYouCap)
	s.cache.PutMemory(lang, initial)
	emit(initial)

	// Stage 2: mood sections resolve independently; a failed mood stays
	// empty instead of failing the refresh.
	moods := []struct{ vibe, key string }{
		{"chill", vibee.MoodChill},
		{"love", vibee.MoodItem},
		{"melody", vibee.MoodMelody},
	}
	g2, g2ctx := errgroup.WithContext(ctx)
	for _, mood := range moods {
		mood := mood
		g2.Go(func() error {
			songs, err := s.resolver.ResolveVibe(g2ctx, mood.vibe, lang, moodCap)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("mood section resolution failed", "mood", mood.key, "lang", lang, "error", err)
				}
				return nil
			}
			if len(songs) == 0 {
				return nil
			}
			if len(songs) > moodCap {
				songs = songs[:moodCap]
			}
			emit(s.cache.UpdateMood(lang, mood.key, songs))
			return nil
		})
	}
	_ = g2.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final, ok := s.cache.GetMemory(lang)
	if !ok {
		final = initial
	}
	if empty(final) {
		return nil, ErrAllSourcesFailed
	}

	s.cache.Persist(ctx, lang)
	s.scheduleWarmup(lang)
	return final, nil
}

// ExpandSection fetches the full "Show all" listing for one section
// title with a higher per-query limit and no cap.
func (s *Service) ExpandSection(ctx context.Context, title, lang string) []vibee.Song {
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}
	query := lang + " songs"
	if format, ok := expandQueries[title]; ok {
		query = fmt.Sprintf(format, lang)
	}
	return s.fetcher.FetchSection(ctx, query, lang, expandQueryLimit)
}

// Invalidate drops the cached sections for lang so the next call
// refreshes.
func (s *Service) Invalidate(ctx context.Context, lang string) {
	s.cache.Invalidate(ctx, lang)
}

func (s *Service) followedArtistSongs(ctx context.Context, lang string) []vibee.Song {
	if s.follows == nil {
		return nil
	}
	artists, err := s.follows.FollowedArtists(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("followed artists unavailable", "error", err)
		}
		return nil
	}
	if len(artists) > maxPersonalArtists {
		artists = artists[:maxPersonalArtists]
	}
	if len(artists) == 0 {
		return nil
	}

	results := make([][]vibee.Song, len(artists))
	g, gctx := errgroup.WithContext(ctx)
	for i, artist := range artists {
		i, artist := i, artist
		g.Go(func() error {
			songs := s.fetcher.FetchSection(gctx, artist.Name+" "+lang, lang, sectionQueryLimit)
			if len(songs) > songsPerPersonalArtist {
				songs = songs[:songsPerPersonalArtist]
			}
			results[i] = songs
			return nil
		})
	}
	_ = g.Wait()

	var flat []vibee.Song
	for _, r := range results {
		flat = append(flat, r...)
	}
	return flat
}

// scheduleWarmup queues a one-time background warm-up of the next few
// languages, staggered so the warm-ups don't stampede the catalog.
func (s *Service) scheduleWarmup(active string) {
	if s.pool == nil || !s.warmedUp.CompareAndSwap(false, true) {
		return
	}

	scheduled := 0
	for _, lang := range s.cfg.Languages {
		if lang == active {
			continue
		}
		if scheduled >= s.cfg.WarmupLanguages {
			break
		}
		scheduled++
		delay := s.cfg.WarmupDelay * time.Duration(scheduled)
		target := lang
		if err := s.pool.Submit(func() {
			s.sleep(delay)
			s.warmupLanguage(context.Background(), target)
		}); err != nil && s.logger != nil {
			s.logger.Warn("warmup task rejected", "lang", target, "error", err)
		}
	}
}

// warmupLanguage builds a full section set for lang in one pass and
// drops it in the memory tier. Failures are logged and swallowed.
func (s *Service) warmupLanguage(ctx context.Context, lang string) {
	if _, ok := s.cache.GetMemory(lang); ok {
		return
	}

	var trending, popular, chill, item, melody []vibee.Song
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trending = s.fetcher.FetchSection(gctx, fmt.Sprintf(warmupQuery, lang), lang, sectionQueryLimit)
		return nil
	})
	g.Go(func() error {
		popular = s.fetcher.FetchSection(gctx, fmt.Sprintf(popularQuery, lang), lang, sectionQueryLimit)
		return nil
	})
	g.Go(func() error {
		chill = s.resolveMood(gctx, "chill", lang)
		return nil
	})
	g.Go(func() error {
		item = s.resolveMood(gctx, "love", lang)
		return nil
	})
	g.Go(func() error {
		melody = s.resolveMood(gctx, "melody", lang)
		return nil
	})
	_ = g.Wait()

	// One shared seen-set: warm-up sections never repeat a song.
	seen := make(map[string]struct{})
	set := vibee.SectionSet{
		vibee.MoodTrending:    dedupeSeen(trending, seen, trendingCap),
		vibee.MoodChill:       dedupeSeen(chill, seen, moodCap),
		vibee.MoodItem:        dedupeSeen(item, seen, moodCap),
		vibee.MoodMelody:      dedupeSeen(melody, seen, moodCap),
		vibee.MoodSongsForYou: dedupeSeen(popular, seen, forYouCap),
	}
	if empty(set) {
		if s.logger != nil {
			s.logger.Debug("warmup produced nothing", "lang", lang)
		}
		return
	}

	s.cache.PutMemory(lang, set)
	if s.logger != nil {
		s.logger.Info("background warmup complete", "lang", lang)
	}
}

func (s *Service) resolveMood(ctx context.Context, vibe, lang string) []vibee.Song {
	songs, err := s.resolver.ResolveVibe(ctx, vibe, lang, moodCap)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("warmup mood failed", "mood", vibe, "lang", lang, "error", err)
		}
		return nil
	}
	return songs
}

// dedupeSeen filters songs already in seen, records the rest and caps
// the result.
func dedupeSeen(songs []vibee.Song, seen map[string]struct{}, limit int) []vibee.Song {
	out := make([]vibee.Song, 0, min(len(songs), limit))
	for _, song := range songs {
		if song.ID == "" {
			continue
		}
		if _, dup := seen[song.ID]; dup {
			continue
		}
		seen[song.ID] = struct{}{}
		out = append(out, song)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func empty(set vibee.SectionSet) bool {
	for _, songs := range set {
		if len(songs) > 0 {
			return false
		}
	}
	return true
}
