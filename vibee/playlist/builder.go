package playlist

import (
	"context"
	"math/rand"
	"strings"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
	"github.com/vibeelabs/vibee-go/vibee/resolver"
)

const (
	recommendationCount = 30
	supplementThreshold = 10
	supplementTarget    = 60
	playlistSearchLimit = 5
	finalCap            = 30
)

var supplementOptions = httpx.Options{Retries: 1}

// Result is a built vibe playlist: deduped songs plus banner artwork.
type Result struct {
	Title  string
	Songs  []vibee.Song
	Banner string
}

// Builder assembles a playlist from a free-form vibe description in two
// stages: generative recommendations resolved against the catalog, then
// curated playlists matching the description when the first stage comes
// up short. An empty result is not an error; callers render "No results
// found for this description".
type Builder struct {
	catalog     *catalog.Client
	resolver    *resolver.Resolver
	recommender vibee.Recommender
	logger      vibee.Logger
	shuffle     func(n int, swap func(i, j int))
}

// NewBuilder creates a playlist builder.
func NewBuilder(cat *catalog.Client, res *resolver.Resolver, rec vibee.Recommender, logger vibee.Logger) *Builder {
	return &Builder{
		catalog:     cat,
		resolver:    res,
		recommender: rec,
		logger:      logger,
		shuffle:     rand.Shuffle,
	}
}

// Build assembles a playlist for vibe. onPartial, when non-nil, sees
// the accumulated songs after each resolved batch so callers can render
// progressively. The final list is shuffled and capped; songs are
// deduped across both stages.
func (b *Builder) Build(ctx context.Context, vibe, lang string, onPartial func([]vibee.Song)) (Result, error) {
	vibe = strings.TrimSpace(vibe)
	if vibe == "" {
		return Result{}, nil
	}

	seen := make(map[string]struct{})
	var songs []vibee.Song
	add := func(batch []vibee.Song) int {
		added := 0
		for _, song := range batch {
			if song.ID == "" {
				continue
			}
			if _, dup := seen[song.ID]; dup {
				continue
			}
			seen[song.ID] = struct{}{}
			songs = append(songs, song)
			added++
		}
		return added
	}

	if err := b.resolveRecommended(ctx, vibe, lang, add, onPartial, &songs); err != nil {
		return Result{Title: vibe}, err
	}

	banner := ""
	if len(songs) < supplementThreshold {
		banner = b.supplementFromCurated(ctx, vibe, add, &songs)
	}
	if err := ctx.Err(); err != nil {
		return Result{Title: vibe}, err
	}

	if len(songs) == 0 {
		return Result{Title: vibe}, nil
	}

	final := append([]vibee.Song(nil), songs...)
	b.shuffle(len(final), func(i, j int) { final[i], final[j] = final[j], final[i] })
	if len(final) > finalCap {
		final = final[:finalCap]
	}
	if banner == "" {
		banner = final[0].Artwork()
	}
	return Result{Title: vibe, Songs: final, Banner: banner}, nil
}

// resolveRecommended runs stage one: generative track metadata resolved
// one by one against the catalog. A recommender failure degrades to the
// curated stage instead of failing the build.
func (b *Builder) resolveRecommended(ctx context.Context, vibe, lang string, add func([]vibee.Song) int, onPartial func([]vibee.Song), songs *[]vibee.Song) error {
	if b.recommender == nil {
		return nil
	}

	recs, err := b.recommender.Recommend(ctx, vibe, recommendationCount)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("recommendation retrieval failed, using curated fallback", "vibe", vibe, "error", err)
		}
		return nil
	}
	if len(recs) == 0 {
		return nil
	}

	_, err = b.resolver.ResolveRecommendations(ctx, recs, lang, func(batch []vibee.Song) {
		if add(batch) > 0 && onPartial != nil {
			onPartial(append([]vibee.Song(nil), *songs...))
		}
	})
	return err
}

// supplementFromCurated runs stage two: curated playlists matching the
// description, pulled until the target size is reached. Returns the
// banner artwork of the first playlist that contributed songs.
func (b *Builder) supplementFromCurated(ctx context.Context, vibe string, add func([]vibee.Song) int, songs *[]vibee.Song) string {
	hits, err := b.catalog.SearchPlaylists(ctx, vibe, playlistSearchLimit, supplementOptions)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("curated playlist search failed", "vibe", vibe, "error", err)
		}
		return ""
	}

	banner := ""
	for _, hit := range hits {
		if ctx.Err() != nil {
			return banner
		}
		raw, err := b.catalog.PlaylistSongs(ctx, hit.ID, supplementOptions)
		if err != nil {
			if b.logger != nil {
				b.logger.Warn("curated playlist fetch failed", "playlist", hit.ID, "error", err)
			}
			continue
		}
		if add(catalog.NormalizeAll(raw)) > 0 && banner == "" {
			banner = hit.Image
		}
		if len(*songs) >= supplementTarget {
			break
		}
	}
	return banner
}
