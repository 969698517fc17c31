package vibee

import "time"

// RoleMainArtist is the role assigned to primary performers.
const RoleMainArtist = "Main Artist"

// Artist is one credited performer on a song.
type Artist struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Image is one artwork URL slot. The catalog only ever yields a single
// usable URL per record, so normalized songs carry the same URL in all
// three slots to keep the low/med/high layout stable for consumers.
type Image struct {
	URL string `json:"url"`
}

// StreamCandidate is one playable URL with an optional quality label.
type StreamCandidate struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
}

// ArtistCredits splits the credited artists into the primary performers
// and the full list including secondary credits.
type ArtistCredits struct {
	Primary []Artist `json:"primary"`
	All     []Artist `json:"all"`
}

// Song is the canonical catalog entity. Instances are immutable once
// normalized; text fields are HTML-entity decoded.
type Song struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Duration  int               `json:"duration"`
	AlbumName string            `json:"albumName"`
	Images    []Image           `json:"image"`
	Streams   []StreamCandidate `json:"downloadUrl"`
	Artists   ArtistCredits     `json:"artists"`
}

// PrimaryArtist returns the first primary performer's name, or a
// placeholder when no credits survived normalization.
func (s *Song) PrimaryArtist() string {
	if len(s.Artists.Primary) > 0 {
		return s.Artists.Primary[0].Name
	}
	return "Unknown Artist"
}

// Artwork returns the highest-quality image slot.
func (s *Song) Artwork() string {
	if len(s.Images) == 0 {
		return ""
	}
	return s.Images[len(s.Images)-1].URL
}

// ArtistSearchResult is one hit from the artist-search endpoint.
type ArtistSearchResult struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  string `json:"role"`
	Type  string `json:"type"`
}

// SearchResults is a combined artist+song search response. Artists are
// listed ahead of songs, matching the presentation order.
type SearchResults struct {
	Artists []ArtistSearchResult `json:"artists"`
	Songs   []Song               `json:"songs"`
}

// Empty reports whether the search yielded nothing at all.
func (r *SearchResults) Empty() bool {
	return r == nil || (len(r.Artists) == 0 && len(r.Songs) == 0)
}

// Home screen mood keys.
const (
	MoodTrending    = "trending"
	MoodChill       = "chill"
	MoodItem        = "item"
	MoodMelody      = "melody"
	MoodSongsForYou = "songsForYou"
)

// MoodKeys lists every section key in presentation order.
var MoodKeys = []string{MoodTrending, MoodChill, MoodItem, MoodMelody, MoodSongsForYou}

// SectionSet maps a mood key to its ordered songs. A set is an immutable
// snapshot; refreshes replace it wholesale rather than mutating in place.
type SectionSet map[string][]Song

// Clone returns a shallow copy safe for copy-on-write updates. Song
// slices are shared; they are never mutated after normalization.
func (s SectionSet) Clone() SectionSet {
	out := make(SectionSet, len(s))
	for key, songs := range s {
		out[key] = songs
	}
	return out
}

// EmptySectionSet returns a set with every mood key present but empty.
func EmptySectionSet() SectionSet {
	out := make(SectionSet, len(MoodKeys))
	for _, key := range MoodKeys {
		out[key] = nil
	}
	return out
}

// Recommendation is one track/artist pair from the generative recommender.
type Recommendation struct {
	Track  string `json:"track"`
	Artist string `json:"artist"`
}

// Track is the narrow shape handed to the media transport.
type Track struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Artwork  string `json:"artwork"`
	Duration int    `json:"duration"`
}

// Playlist is a user-created playlist. Songs are stored separately.
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// KVEntry is one persisted key-value record.
type KVEntry struct {
	Payload   []byte
	UpdatedAt time.Time
}

// Languages lists the catalog languages the home screen rotates through.
// The first entry is the default.
var Languages = []string{
	"tamil",
	"telugu",
	"hindi",
	"english",
	"punjabi",
	"malayalam",
	"kannada",
}
