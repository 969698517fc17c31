package sections

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
	"golang.org/x/sync/errgroup"
)

// Fetcher runs query-based section fetches: one comma-separated query
// fans out into concurrent sub-queries whose results are merged,
// deduped and shuffled. Failures never propagate; a section that cannot
// be fetched is an empty section.
type Fetcher struct {
	catalog *catalog.Client
	logger  vibee.Logger
	shuffle func(n int, swap func(i, j int))
}

// NewFetcher creates a Fetcher over the catalog client.
func NewFetcher(cat *catalog.Client, logger vibee.Logger) *Fetcher {
	return &Fetcher{
		catalog: cat,
		logger:  logger,
		shuffle: rand.Shuffle,
	}
}

var sectionFetchOptions = httpx.Options{Retries: 2, Timeout: 10 * time.Second}

// FetchSection fetches songs for queryInput in lang. Sub-queries that
// don't already mention the language are qualified as
// "{lang} songs {query}". Dedupe runs on the raw record ids before
// normalization, first occurrence wins, records without an id are
// dropped.
func (f *Fetcher) FetchSection(ctx context.Context, queryInput, lang string, limit int) []vibee.Song {
	queries := splitQueries(queryInput, lang)
	if len(queries) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 15
	}

	results := make([][]json.RawMessage, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			raw, err := f.catalog.SearchSongsRaw(gctx, q, limit, sectionFetchOptions)
			if err != nil {
				if f.logger != nil {
					f.logger.Warn("section sub-query failed", "query", q, "error", err)
				}
				return nil
			}
			results[i] = raw
			return nil
		})
	}
	_ = g.Wait()

	var all []json.RawMessage
	for _, r := range results {
		all = append(all, r...)
	}
	if len(all) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(all))
	unique := make([]json.RawMessage, 0, len(all))
	for _, record := range all {
		id := catalog.RecordID(record)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, record)
	}

	songs := catalog.NormalizeAll(unique)
	f.shuffle(len(songs), func(i, j int) { songs[i], songs[j] = songs[j], songs[i] })
	return songs
}

func splitQueries(queryInput, lang string) []string {
	parts := strings.Split(queryInput, ",")
	queries := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		queries = append(queries, qualifyQuery(part, lang))
	}
	return queries
}

// qualifyQuery scopes a sub-query to the listener's language unless the
// query already names it.
func qualifyQuery(query, lang string) string {
	if lang == "" {
		return query
	}
	if strings.Contains(strings.ToLower(query), strings.ToLower(lang)) {
		return query
	}
	return lang + " songs " + query
}
