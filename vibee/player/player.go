package player

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
)

// Stream quality labels as the catalog reports them.
const (
	QualityHigh   = "320kbps"
	QualityMedium = "160kbps"
)

const (
	suggestionLimit   = 10
	moodSearchLimit   = 15
	similarSongsCap   = 10
	suggestionMinimum = 6
)

var similarOptions = httpx.Options{Retries: 1, Timeout: 10 * time.Second}

// StreamURL picks the playable URL for a song: the 320kbps candidate,
// else 160kbps, else the last candidate the catalog offered.
func StreamURL(song vibee.Song) string {
	if len(song.Streams) == 0 {
		return ""
	}
	for _, quality := range []string{QualityHigh, QualityMedium} {
		for _, c := range song.Streams {
			if c.Quality == quality && c.URL != "" {
				return c.URL
			}
		}
	}
	return song.Streams[len(song.Streams)-1].URL
}

// BuildTracks maps songs to transport tracks. Songs without a playable
// stream are dropped.
func BuildTracks(songs []vibee.Song) []vibee.Track {
	tracks := make([]vibee.Track, 0, len(songs))
	for i := range songs {
		url := StreamURL(songs[i])
		if url == "" {
			continue
		}
		tracks = append(tracks, vibee.Track{
			ID:       songs[i].ID,
			URL:      url,
			Title:    songs[i].Name,
			Artist:   songs[i].PrimaryArtist(),
			Artwork:  songs[i].Artwork(),
			Duration: songs[i].Duration,
		})
	}
	return tracks
}

// moodKeywords maps a detected mood to its trigger words, checked in
// order so romantic cues win over party cues.
var moodKeywords = []struct {
	mood  string
	words []string
}{
	{"melody", []string{"melody", "love", "romantic", "feeling"}},
	{"item", []string{"item", "party", "dance", "beat"}},
	{"chill", []string{"chill", "slow", "relax", "sad"}},
	{"trending", []string{"trending", "hit", "top"}},
}

// DetectMood infers a mood from the song title, album and the playlist
// it was played from. Falls back to "popular".
func DetectMood(song vibee.Song, playlistName string) string {
	text := strings.ToLower(song.Name + " " + song.AlbumName + " " + playlistName)
	for _, entry := range moodKeywords {
		for _, word := range entry.words {
			if strings.Contains(text, word) {
				return entry.mood
			}
		}
	}
	return "popular"
}

// moodQuery expands a mood into the search query used when the
// suggestions endpoint comes up short.
func moodQuery(mood, lang string) string {
	switch mood {
	case "melody":
		return lang + " love romantic songs"
	case "item":
		return lang + " dance party songs"
	case "chill":
		return lang + " chill slow songs"
	default:
		return lang + " " + mood + " songs"
	}
}

// Service finds similar songs for infinite autoplay and feeds the media
// transport's queue.
type Service struct {
	catalog   *catalog.Client
	transport vibee.MediaTransport
	logger    vibee.Logger
	shuffle   func(n int, swap func(i, j int))
}

// New creates the player service. transport may be nil when playback
// queueing is handled elsewhere.
func New(cat *catalog.Client, transport vibee.MediaTransport, logger vibee.Logger) *Service {
	return &Service{
		catalog:   cat,
		transport: transport,
		logger:    logger,
		shuffle:   rand.Shuffle,
	}
}

// SimilarSongs finds songs to continue from song: the catalog's
// suggestions endpoint when it yields a usable batch, else a mood-based
// search. Failures degrade to an empty list.
func (s *Service) SimilarSongs(ctx context.Context, song vibee.Song, mood, lang string) []vibee.Song {
	if song.ID != "" {
		suggested, err := s.catalog.Suggestions(ctx, song.ID, suggestionLimit, similarOptions)
		if err == nil && len(suggested) >= suggestionMinimum {
			return suggested
		}
		if err != nil && s.logger != nil {
			s.logger.Debug("suggestions endpoint failed, using mood search", "song", song.ID, "error", err)
		}
	}

	found, err := s.catalog.SearchSongs(ctx, moodQuery(mood, lang), moodSearchLimit, similarOptions)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("similar song search failed", "mood", mood, "error", err)
		}
		return nil
	}
	s.shuffle(len(found), func(i, j int) { found[i], found[j] = found[j], found[i] })
	if len(found) > similarSongsCap {
		found = found[:similarSongsCap]
	}
	return found
}

// RefillQueue finds similar songs for the song that just finished and
// appends them to the transport queue. Returns the enqueued tracks.
func (s *Service) RefillQueue(ctx context.Context, current vibee.Song, mood, lang string) ([]vibee.Track, error) {
	if mood == "" {
		mood = DetectMood(current, "")
	}

	tracks := BuildTracks(s.SimilarSongs(ctx, current, mood, lang))
	if len(tracks) == 0 {
		return nil, nil
	}
	if s.transport != nil {
		if err := s.transport.Enqueue(ctx, tracks); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}
