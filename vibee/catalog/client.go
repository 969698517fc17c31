package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
)

// Client is the typed catalog API client. All methods are single GET
// endpoints; retry budgets come in through httpx.Options so each caller
// keeps its own budget.
type Client struct {
	http    *httpx.Client
	baseURL string
	logger  vibee.Logger
}

// NewClient creates a catalog client over the retry transport.
func NewClient(http *httpx.Client, baseURL string, logger vibee.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// PlaylistHit is one result from the playlist-search endpoint.
type PlaylistHit struct {
	ID    string
	Name  string
	Image string
}

func (c *Client) searchURL(kind, query string, limit int) string {
	return fmt.Sprintf("%s/search/%s?query=%s&limit=%d", c.baseURL, kind, url.QueryEscape(query), limit)
}

// SearchSongsRaw returns the raw song records for query. Callers that
// dedupe across queries run this before Normalize.
func (c *Client) SearchSongsRaw(ctx context.Context, query string, limit int, opts httpx.Options) ([]json.RawMessage, error) {
	body, err := c.http.FetchJSON(ctx, c.searchURL("songs", query, limit), opts)
	if err != nil {
		return nil, &CatalogError{Endpoint: "search/songs", Query: query, Err: err}
	}
	return ExtractResults(body), nil
}

// SearchSongs returns normalized songs for query. An empty result is
// not an error.
func (c *Client) SearchSongs(ctx context.Context, query string, limit int, opts httpx.Options) ([]vibee.Song, error) {
	raw, err := c.SearchSongsRaw(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	return NormalizeAll(raw), nil
}

// SearchArtists returns normalized artist hits for query.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int, opts httpx.Options) ([]vibee.ArtistSearchResult, error) {
	body, err := c.http.FetchJSON(ctx, c.searchURL("artists", query, limit), opts)
	if err != nil {
		return nil, &CatalogError{Endpoint: "search/artists", Query: query, Err: err}
	}
	raw := ExtractResults(body)
	out := make([]vibee.ArtistSearchResult, 0, len(raw))
	for _, r := range raw {
		if a := NormalizeArtist(r); a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

// SearchPlaylists returns curated playlist hits for query.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int, opts httpx.Options) ([]PlaylistHit, error) {
	body, err := c.http.FetchJSON(ctx, c.searchURL("playlists", query, limit), opts)
	if err != nil {
		return nil, &CatalogError{Endpoint: "search/playlists", Query: query, Err: err}
	}

	raw := ExtractResults(body)
	hits := make([]PlaylistHit, 0, len(raw))
	for _, r := range raw {
		var p struct {
			ID    json.RawMessage `json:"id"`
			Name  json.RawMessage `json:"name"`
			Title json.RawMessage `json:"title"`
			Image json.RawMessage `json:"image"`
		}
		if json.Unmarshal(r, &p) != nil {
			continue
		}
		id := stringValue(p.ID)
		if id == "" {
			continue
		}
		name := stringValue(p.Name)
		if name == "" {
			name = stringValue(p.Title)
		}
		hits = append(hits, PlaylistHit{ID: id, Name: DecodeText(name), Image: bannerURL(p.Image)})
	}
	return hits, nil
}

// bannerURL picks banner artwork from a playlist image array: the
// third (large) slot's url, else the last slot's link/url.
func bannerURL(raw json.RawMessage) string {
	var arr []struct {
		URL  string `json:"url"`
		Link string `json:"link"`
	}
	if json.Unmarshal(raw, &arr) != nil || len(arr) == 0 {
		return ""
	}
	if len(arr) > 2 && arr[2].URL != "" {
		return arr[2].URL
	}
	last := arr[len(arr)-1]
	if last.Link != "" {
		return last.Link
	}
	return last.URL
}

// PlaylistSongs returns the raw songs of one curated playlist.
func (c *Client) PlaylistSongs(ctx context.Context, id string, opts httpx.Options) ([]json.RawMessage, error) {
	u := fmt.Sprintf("%s/playlists?id=%s", c.baseURL, url.QueryEscape(id))
	body, err := c.http.FetchJSON(ctx, u, opts)
	if err != nil {
		return nil, &CatalogError{Endpoint: "playlists", Query: id, Err: err}
	}

	var env struct {
		Data  json.RawMessage   `json:"data"`
		Songs []json.RawMessage `json:"songs"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &CatalogError{Endpoint: "playlists", Query: id, Err: err}
	}
	if present(env.Data) {
		var inner struct {
			Songs []json.RawMessage `json:"songs"`
		}
		if json.Unmarshal(env.Data, &inner) == nil && len(inner.Songs) > 0 {
			return inner.Songs, nil
		}
	}
	return env.Songs, nil
}

// Suggestions returns songs similar to songID per the catalog.
func (c *Client) Suggestions(ctx context.Context, songID string, limit int, opts httpx.Options) ([]vibee.Song, error) {
	u := fmt.Sprintf("%s/songs/%s/suggestions?limit=%d", c.baseURL, url.PathEscape(songID), limit)
	body, err := c.http.FetchJSON(ctx, u, opts)
	if err != nil {
		return nil, &CatalogError{Endpoint: "suggestions", Query: songID, Err: err}
	}
	return NormalizeAll(ExtractResults(body)), nil
}

// Lyrics returns the raw lyric text for songID, or ErrNotFound when the
// catalog has none.
func (c *Client) Lyrics(ctx context.Context, songID string, opts httpx.Options) (string, error) {
	u := fmt.Sprintf("%s/songs/%s/lyrics", c.baseURL, url.PathEscape(songID))
	body, err := c.http.FetchJSON(ctx, u, opts)
	if err != nil {
		return "", &CatalogError{Endpoint: "lyrics", Query: songID, Err: err}
	}

	var env struct {
		Success bool   `json:"success"`
		Lyrics  string `json:"lyrics"`
		Data    struct {
			Lyrics string `json:"lyrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &CatalogError{Endpoint: "lyrics", Query: songID, Err: err}
	}

	text := env.Data.Lyrics
	if text == "" {
		text = env.Lyrics
	}
	if !env.Success || text == "" {
		return "", &CatalogError{Endpoint: "lyrics", Query: songID, Err: ErrNotFound}
	}
	return text, nil
}
