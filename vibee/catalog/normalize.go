package catalog

import (
	"encoding/json"
	"hash/fnv"
	"io"
	"strconv"
	"strings"

	"github.com/vibeelabs/vibee-go/vibee"
)

// rawSong tolerates the catalog's shape drift: most fields arrive in
// two or three different encodings depending on the endpoint.
type rawSong struct {
	ID             json.RawMessage `json:"id"`
	Name           json.RawMessage `json:"name"`
	Title          json.RawMessage `json:"title"`
	Duration       json.RawMessage `json:"duration"`
	Album          json.RawMessage `json:"album"`
	Image          json.RawMessage `json:"image"`
	DownloadURL    json.RawMessage `json:"downloadUrl"`
	MediaURL       json.RawMessage `json:"media_url"`
	PrimaryArtists json.RawMessage `json:"primaryArtists"`
	Artists        json.RawMessage `json:"artists"`
	HeaderDesc     json.RawMessage `json:"header_desc"`
	Artist         json.RawMessage `json:"artist"`
}

// Normalize converts one raw catalog record into a Song. Returns nil
// when the record cannot be decoded at all; callers drop nil entries
// instead of failing the whole response.
func Normalize(raw json.RawMessage) *vibee.Song {
	if !present(raw) {
		return nil
	}
	var r rawSong
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil
	}

	name := stringValue(r.Name)
	if name == "" {
		name = stringValue(r.Title)
	}
	if name == "" {
		name = "Unknown Title"
	}

	img := imageURL(r.Image)
	artists := creditedArtists(&r)

	song := &vibee.Song{
		ID:        stringValue(r.ID),
		Name:      DecodeText(name),
		Duration:  intValue(r.Duration),
		AlbumName: DecodeText(albumName(r.Album)),
		Images:    []vibee.Image{{URL: img}, {URL: img}, {URL: img}},
		Streams:   streamCandidates(r.DownloadURL, r.MediaURL),
		Artists:   vibee.ArtistCredits{Primary: artists, All: artists},
	}
	if song.ID == "" {
		song.ID = surrogateID(song)
	}
	return song
}

// NormalizeAll maps raw records to songs, dropping undecodable ones.
func NormalizeAll(raw []json.RawMessage) []vibee.Song {
	out := make([]vibee.Song, 0, len(raw))
	for _, r := range raw {
		if song := Normalize(r); song != nil {
			out = append(out, *song)
		}
	}
	return out
}

// RecordID reads a raw record's id without normalizing it. Fan-out
// callers dedupe on this before the heavier Normalize pass.
func RecordID(raw json.RawMessage) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return stringValue(probe.ID)
}

// surrogateID derives a stable id from the song's identity fields, so
// records the catalog serves without an id dedupe consistently across
// refreshes.
func surrogateID(s *vibee.Song) string {
	h := fnv.New64a()
	io.WriteString(h, s.Name)
	io.WriteString(h, "|")
	io.WriteString(h, s.PrimaryArtist())
	io.WriteString(h, "|")
	io.WriteString(h, s.AlbumName)
	return "gen-" + strconv.FormatUint(h.Sum64(), 16)
}

func stringValue(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func intValue(raw json.RawMessage) int {
	if !present(raw) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
	}
	return 0
}

func albumName(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// imageURL picks the usable artwork URL: a bare string is taken as-is,
// an array contributes its last (highest quality) element.
func imageURL(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return ""
	}
	last := arr[len(arr)-1]
	if err := json.Unmarshal(last, &s); err == nil {
		return s
	}
	var obj struct {
		Link string `json:"link"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(last, &obj); err == nil {
		if obj.Link != "" {
			return obj.Link
		}
		return obj.URL
	}
	return ""
}

// streamCandidates reads downloadUrl, falling back to the legacy
// media_url field. Entries may be {link}/{url} objects or one bare URL.
func streamCandidates(download, media json.RawMessage) []vibee.StreamCandidate {
	raw := download
	if !present(raw) {
		raw = media
	}
	if !present(raw) {
		return nil
	}

	var arr []struct {
		URL     string `json:"url"`
		Link    string `json:"link"`
		Quality string `json:"quality"`
	}
	if err := json.Unmarshal(raw, &arr); err == nil {
		out := make([]vibee.StreamCandidate, 0, len(arr))
		for _, d := range arr {
			u := d.Link
			if u == "" {
				u = d.URL
			}
			out = append(out, vibee.StreamCandidate{URL: u, Quality: d.Quality})
		}
		return out
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []vibee.StreamCandidate{{URL: s}}
	}
	return nil
}

// creditedArtists resolves the artist credits in precedence order:
// primaryArtists as a comma-joined string, primaryArtists as an array,
// then the artists.primary block. A record with no credits at all
// falls back to header_desc, then artist, then a placeholder.
func creditedArtists(r *rawSong) []vibee.Artist {
	var result []vibee.Artist

	if present(r.PrimaryArtists) {
		var joined string
		if err := json.Unmarshal(r.PrimaryArtists, &joined); err == nil {
			for _, name := range strings.Split(joined, ",") {
				if name = strings.TrimSpace(name); name != "" {
					result = append(result, vibee.Artist{Name: name, Role: vibee.RoleMainArtist})
				}
			}
		} else {
			var arr []json.RawMessage
			if err := json.Unmarshal(r.PrimaryArtists, &arr); err == nil {
				for _, el := range arr {
					var name string
					if err := json.Unmarshal(el, &name); err != nil {
						var obj struct {
							Name string `json:"name"`
						}
						if json.Unmarshal(el, &obj) == nil {
							name = obj.Name
						}
					}
					if name != "" {
						result = append(result, vibee.Artist{Name: name, Role: vibee.RoleMainArtist})
					}
				}
			}
		}
	}

	if len(result) == 0 && present(r.Artists) {
		var block struct {
			Primary []struct {
				Name string `json:"name"`
			} `json:"primary"`
		}
		if json.Unmarshal(r.Artists, &block) == nil {
			for _, a := range block.Primary {
				if a.Name != "" {
					result = append(result, vibee.Artist{Name: a.Name, Role: vibee.RoleMainArtist})
				}
			}
		}
	}

	if len(result) == 0 {
		name := stringValue(r.HeaderDesc)
		if name == "" {
			name = stringValue(r.Artist)
		}
		if name == "" {
			name = "Unknown Artist"
		}
		result = append(result, vibee.Artist{Name: name, Role: vibee.RoleMainArtist})
	}

	for i := range result {
		result[i].Name = DecodeText(result[i].Name)
	}
	return result
}

// thumbnail sizes the artist endpoint serves; upgraded to the large
// variant for display.
var artistImageUpgrader = strings.NewReplacer(
	"150x150", "500x500",
	"50x50", "500x500",
)

type rawArtist struct {
	ID    json.RawMessage `json:"id"`
	Name  json.RawMessage `json:"name"`
	Title json.RawMessage `json:"title"`
	Image json.RawMessage `json:"image"`
	Role  json.RawMessage `json:"role"`
}

// NormalizeArtist converts one raw artist-search record, upgrading
// low-res thumbnail URLs to the 500x500 variant. Returns nil for
// undecodable records.
func NormalizeArtist(raw json.RawMessage) *vibee.ArtistSearchResult {
	if !present(raw) {
		return nil
	}
	var r rawArtist
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil
	}

	name := stringValue(r.Name)
	if name == "" {
		name = stringValue(r.Title)
	}
	role := stringValue(r.Role)
	if role == "" {
		role = "Artist"
	}

	var image string
	var s string
	if err := json.Unmarshal(r.Image, &s); err == nil {
		image = artistImageUpgrader.Replace(s)
	} else {
		var arr []struct {
			Quality string `json:"quality"`
			URL     string `json:"url"`
			Link    string `json:"link"`
		}
		if err := json.Unmarshal(r.Image, &arr); err == nil && len(arr) > 0 {
			pick := arr[len(arr)-1]
			for _, img := range arr {
				if img.Quality == "500x500" {
					pick = img
					break
				}
			}
			image = pick.URL
			if image == "" {
				image = pick.Link
			}
		}
	}

	return &vibee.ArtistSearchResult{
		ID:    stringValue(r.ID),
		Name:  DecodeText(name),
		Image: image,
		Role:  role,
		Type:  "artist",
	}
}
