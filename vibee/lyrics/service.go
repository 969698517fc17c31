package lyrics

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
)

// ErrNotFound means no provider in the chain had lyrics for the song.
var ErrNotFound = errors.New("lyrics: not found")

// DefaultProviderURL is the LRCLIB API root.
const DefaultProviderURL = "https://lrclib.net/api"

var catalogLyricsOptions = httpx.Options{Retries: 1, Timeout: 5 * time.Second}

// Service fetches lyrics through a provider chain: the catalog's
// id-based endpoint first, then LRCLIB by exact metadata, then LRCLIB
// free-text search for slight metadata mismatches.
type Service struct {
	catalog *catalog.Client
	client  *resty.Client
	logger  vibee.Logger
}

// New creates the lyrics service. baseURL falls back to the public
// LRCLIB API.
func New(cat *catalog.Client, baseURL string, logger vibee.Logger) *Service {
	if baseURL == "" {
		baseURL = DefaultProviderURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	return &Service{catalog: cat, client: client, logger: logger}
}

type lrcRecord struct {
	SyncedLyrics string `json:"syncedLyrics"`
	PlainLyrics  string `json:"plainLyrics"`
}

func (r lrcRecord) text() string {
	if r.SyncedLyrics != "" {
		return r.SyncedLyrics
	}
	return r.PlainLyrics
}

// Fetch walks the provider chain for song and returns the first lyric
// text found. Synced lyrics win over plain where the provider has both.
func (s *Service) Fetch(ctx context.Context, song vibee.Song) (string, error) {
	if song.ID == "" && song.Name == "" {
		return "", ErrNotFound
	}

	if song.ID != "" {
		text, err := s.catalog.Lyrics(ctx, song.ID, catalogLyricsOptions)
		if err == nil {
			return Sanitize(text), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if s.logger != nil {
			s.logger.Debug("catalog lyrics unavailable, trying providers", "song", song.ID, "error", err)
		}
	}

	title := cleanQuery(song.Name)
	artist := cleanQuery(primaryArtistName(song))

	if text, ok := s.exactMatch(ctx, title, artist, song.Duration); ok {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if text, ok := s.searchMatch(ctx, title, artist); ok {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", ErrNotFound
}

func (s *Service) exactMatch(ctx context.Context, title, artist string, duration int) (string, bool) {
	var rec lrcRecord
	req := s.client.R().
		SetContext(ctx).
		SetQueryParam("artist_name", artist).
		SetQueryParam("track_name", title).
		SetResult(&rec)
	if duration > 0 {
		req.SetQueryParam("duration", strconv.Itoa(duration))
	}

	resp, err := req.Get("/get")
	if err != nil || !resp.IsSuccess() {
		if s.logger != nil {
			s.logger.Debug("lyric exact lookup missed", "title", title, "error", err)
		}
		return "", false
	}
	if text := rec.text(); text != "" {
		return text, true
	}
	return "", false
}

func (s *Service) searchMatch(ctx context.Context, title, artist string) (string, bool) {
	var recs []lrcRecord
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("q", strings.TrimSpace(title+" "+artist)).
		SetResult(&recs).
		Get("/search")
	if err != nil || !resp.IsSuccess() || len(recs) == 0 {
		if s.logger != nil {
			s.logger.Debug("lyric search missed", "title", title, "error", err)
		}
		return "", false
	}
	if text := recs[0].text(); text != "" {
		return text, true
	}
	return "", false
}

var (
	brPattern      = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	versionPattern = regexp.MustCompile(`(?i)\((from|original|official|remix).*?\)`)
	bracketPattern = regexp.MustCompile(`\[.*?\]`)
	moviePattern   = regexp.MustCompile(`(?i)- movie`)
)

// Sanitize strips HTML markup and entities left in catalog lyric text.
func Sanitize(text string) string {
	text = brPattern.ReplaceAllString(text, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(catalog.DecodeText(text))
}

// cleanQuery trims release decorations from titles and artist names so
// metadata lookups match the canonical recording.
func cleanQuery(text string) string {
	text = versionPattern.ReplaceAllString(text, "")
	text = bracketPattern.ReplaceAllString(text, "")
	text = moviePattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func primaryArtistName(song vibee.Song) string {
	if len(song.Artists.Primary) > 0 {
		return song.Artists.Primary[0].Name
	}
	return ""
}
