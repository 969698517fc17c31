package resolver

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Preset is a named retry budget for one resolution path.
type Preset struct {
	Name    string
	Retries int
	Timeout time.Duration
}

var (
	// PresetRecommendation keeps single-track lookups cheap so one
	// miss cannot stall a whole batch.
	PresetRecommendation = Preset{Name: "recommendation", Retries: 1, Timeout: 8 * time.Second}

	// PresetArtistLookup allows a little more patience for artist
	// catalog pulls, which return larger pages.
	PresetArtistLookup = Preset{Name: "artist-lookup", Retries: 2, Timeout: 10 * time.Second}
)

// Options converts the preset into transport options.
func (p Preset) Options() httpx.Options {
	return httpx.Options{Retries: p.Retries, Timeout: p.Timeout}
}

var (
	parenPattern   = regexp.MustCompile(`\(.*?\)`)
	bracketPattern = regexp.MustCompile(`\[.*?\]`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// cleanSearchQuery strips parentheticals, brackets and hyphens that
// confuse the catalog's search, then collapses whitespace.
func cleanSearchQuery(text string) string {
	text = parenPattern.ReplaceAllString(text, "")
	text = bracketPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "-", " ")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Resolver turns generative track/artist recommendations into catalog
// songs. Resolution runs in fixed-size concurrent batches with a
// client-side pause between batches so a burst of lookups cannot trip
// the catalog's rate limit.
type Resolver struct {
	catalog     *catalog.Client
	recommender vibee.Recommender
	logger      vibee.Logger
	batchSize   int
	throttle    *rate.Limiter
}

// New creates a Resolver. batchSize and pause fall back to 5 and 200ms.
func New(cat *catalog.Client, rec vibee.Recommender, batchSize int, pause time.Duration, logger vibee.Logger) *Resolver {
	if batchSize <= 0 {
		batchSize = 5
	}
	if pause <= 0 {
		pause = 200 * time.Millisecond
	}
	return &Resolver{
		catalog:     cat,
		recommender: rec,
		logger:      logger,
		batchSize:   batchSize,
		throttle:    rate.NewLimiter(rate.Every(pause), 1),
	}
}

// ResolveVibe asks the recommender for count tracks matching a vibe and
// resolves them against the catalog. Misses drop out silently; a
// recommender failure surfaces as an error so callers can degrade.
func (r *Resolver) ResolveVibe(ctx context.Context, vibe, lang string, count int) ([]vibee.Song, error) {
	if r.recommender == nil {
		return nil, nil
	}
	if count <= 0 {
		count = 10
	}

	prompt := vibe + " songs"
	if lang != "" {
		prompt += " in " + lang
	}
	recs, err := r.recommender.Recommend(ctx, prompt, count)
	if err != nil {
		return nil, err
	}
	if len(recs) > count {
		recs = recs[:count]
	}
	return r.resolveBatches(ctx, recs, r.resolveOne, nil)
}

// ResolveRecommendations resolves track/artist pairs with the
// multi-strategy fallback, streaming each non-empty batch through
// onBatch as it settles. The returned slice holds everything resolved
// so far even when an error cuts the run short.
func (r *Resolver) ResolveRecommendations(ctx context.Context, recs []vibee.Recommendation, lang string, onBatch func([]vibee.Song)) ([]vibee.Song, error) {
	resolve := func(ctx context.Context, rec vibee.Recommendation) *vibee.Song {
		return r.resolveOneFallback(ctx, rec, lang)
	}
	return r.resolveBatches(ctx, recs, resolve, onBatch)
}

// ResolveArtistSongs pulls an artist's songs, qualifying the query with
// the listener's language first and retrying with the bare name when
// that yields nothing.
func (r *Resolver) ResolveArtistSongs(ctx context.Context, artistName, lang string) ([]vibee.Song, error) {
	query := strings.TrimSpace(artistName + " " + lang)
	songs, err := r.catalog.SearchSongs(ctx, query, 40, PresetArtistLookup.Options())
	if err == nil && len(songs) > 0 {
		return songs, nil
	}
	if err != nil && r.logger != nil {
		r.logger.Warn("artist lookup with language failed, retrying bare", "artist", artistName, "error", err)
	}
	return r.catalog.SearchSongs(ctx, artistName, 40, PresetArtistLookup.Options())
}

func (r *Resolver) resolveBatches(ctx context.Context, recs []vibee.Recommendation, resolve func(context.Context, vibee.Recommendation) *vibee.Song, onBatch func([]vibee.Song)) ([]vibee.Song, error) {
	var resolved []vibee.Song
	for start := 0; start < len(recs); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		end := min(start+r.batchSize, len(recs))
		batch := recs[start:end]
		results := make([]*vibee.Song, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, rec := range batch {
			i, rec := i, rec
			g.Go(func() error {
				results[i] = resolve(gctx, rec)
				return nil
			})
		}
		// Workers never fail; misses land as nil slots.
		_ = g.Wait()

		batchSongs := make([]vibee.Song, 0, len(results))
		for _, s := range results {
			if s != nil {
				batchSongs = append(batchSongs, *s)
			}
		}
		resolved = append(resolved, batchSongs...)
		if len(batchSongs) > 0 && onBatch != nil {
			onBatch(batchSongs)
		}

		if end < len(recs) {
			if err := r.throttle.Wait(ctx); err != nil {
				return resolved, err
			}
		}
	}
	return resolved, nil
}

func (r *Resolver) resolveOne(ctx context.Context, rec vibee.Recommendation) *vibee.Song {
	return r.firstHit(ctx, cleanSearchQuery(rec.Track+" "+rec.Artist))
}

// resolveOneFallback walks the query strategies in order: cleaned
// "track artist", bare track, then track qualified with the language.
// Later strategies only run when the earlier ones found nothing, and a
// strategy identical to the first query is skipped.
func (r *Resolver) resolveOneFallback(ctx context.Context, rec vibee.Recommendation, lang string) *vibee.Song {
	first := cleanSearchQuery(rec.Track + " " + rec.Artist)
	if song := r.firstHit(ctx, first); song != nil {
		return song
	}

	if rec.Artist != "" {
		trackOnly := cleanSearchQuery(rec.Track)
		if trackOnly != first {
			if song := r.firstHit(ctx, trackOnly); song != nil {
				return song
			}
		}
	}

	withLang := cleanSearchQuery(rec.Track + " " + lang)
	if withLang != "" && withLang != first {
		if song := r.firstHit(ctx, withLang); song != nil {
			return song
		}
	}
	return nil
}

func (r *Resolver) firstHit(ctx context.Context, query string) *vibee.Song {
	if query == "" {
		return nil
	}
	songs, err := r.catalog.SearchSongs(ctx, query, 1, PresetRecommendation.Options())
	if err != nil {
		if r.logger != nil {
			r.logger.Debug("recommendation lookup failed", "query", query, "error", err)
		}
		return nil
	}
	if len(songs) == 0 {
		return nil
	}
	return &songs[0]
}
