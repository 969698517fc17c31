package library

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
	"github.com/vibeelabs/vibee-go/vibee/store"
)

const (
	settingLanguage = "language"
	settingAutoplay = "autoplay"
)

// ErrEmptyName rejects playlist creation with a blank name.
var ErrEmptyName = errors.New("library: playlist name is empty")

var artistDetailOptions = httpx.Options{Retries: 2}

// Service is the user library: likes, playlists, followed artists and
// the persisted preferences.
type Service struct {
	repo        *store.Repository
	catalog     *catalog.Client
	pool        vibee.WorkerPool
	logger      vibee.Logger
	defaultLang string
}

// New creates the library service. pool may be nil; artist detail
// enrichment then runs inline.
func New(repo *store.Repository, cat *catalog.Client, pool vibee.WorkerPool, defaultLang string, logger vibee.Logger) *Service {
	if defaultLang == "" {
		defaultLang = vibee.Languages[0]
	}
	return &Service{
		repo:        repo,
		catalog:     cat,
		pool:        pool,
		logger:      logger,
		defaultLang: defaultLang,
	}
}

// ToggleLike flips the liked state of song and reports the new state.
func (s *Service) ToggleLike(ctx context.Context, song vibee.Song) (bool, error) {
	liked, err := s.repo.IsLiked(ctx, song.ID)
	if err != nil {
		return false, err
	}
	if liked {
		return false, s.repo.RemoveLike(ctx, song.ID)
	}
	return true, s.repo.AddLike(ctx, song)
}

// LikedSongs returns the liked songs, newest first.
func (s *Service) LikedSongs(ctx context.Context) ([]vibee.Song, error) {
	return s.repo.LikedSongs(ctx)
}

// CreatePlaylist creates an empty user playlist named name.
func (s *Service) CreatePlaylist(ctx context.Context, name string) (vibee.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return vibee.Playlist{}, ErrEmptyName
	}
	p := vibee.Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreatePlaylist(ctx, p); err != nil {
		return vibee.Playlist{}, err
	}
	return p, nil
}

// AddToPlaylist appends song to the playlist. The second return is
// false when the song is already there.
func (s *Service) AddToPlaylist(ctx context.Context, playlistID string, song vibee.Song) (bool, error) {
	return s.repo.AddPlaylistSong(ctx, playlistID, song)
}

// Playlists returns the user playlists, newest first.
func (s *Service) Playlists(ctx context.Context) ([]vibee.Playlist, error) {
	return s.repo.Playlists(ctx)
}

// PlaylistSongs returns the songs of one playlist in insertion order.
func (s *Service) PlaylistSongs(ctx context.Context, playlistID string) ([]vibee.Song, error) {
	return s.repo.PlaylistSongs(ctx, playlistID)
}

// DeletePlaylist removes a playlist and its songs.
func (s *Service) DeletePlaylist(ctx context.Context, playlistID string) error {
	return s.repo.DeletePlaylist(ctx, playlistID)
}

// ToggleFollow flips the follow state of artist and reports the new
// state. On follow, an artist without artwork is enriched in the
// background from the catalog so the library list has an image.
func (s *Service) ToggleFollow(ctx context.Context, artist vibee.ArtistSearchResult) (bool, error) {
	followed, err := s.repo.IsFollowed(ctx, artist.ID)
	if err != nil {
		return false, err
	}
	if followed {
		return false, s.repo.UnfollowArtist(ctx, artist.ID)
	}
	if err := s.repo.FollowArtist(ctx, artist); err != nil {
		return false, err
	}
	if artist.Image == "" {
		s.enrichArtist(artist)
	}
	return true, nil
}

// IsFollowed reports whether the artist is followed.
func (s *Service) IsFollowed(ctx context.Context, artistID string) (bool, error) {
	return s.repo.IsFollowed(ctx, artistID)
}

// FollowedArtists returns the followed artists, newest first.
func (s *Service) FollowedArtists(ctx context.Context) ([]vibee.ArtistSearchResult, error) {
	return s.repo.FollowedArtists(ctx)
}

// enrichArtist looks the artist up in the catalog and re-saves the
// follow row with artwork. Failures are logged and swallowed.
func (s *Service) enrichArtist(artist vibee.ArtistSearchResult) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		hits, err := s.catalog.SearchArtists(ctx, artist.Name, 1, artistDetailOptions)
		if err != nil || len(hits) == 0 || hits[0].Image == "" {
			if err != nil && s.logger != nil {
				s.logger.Warn("artist detail lookup failed", "artist", artist.Name, "error", err)
			}
			return
		}

		artist.Image = hits[0].Image
		if artist.Name == "" {
			artist.Name = hits[0].Name
		}
		if err := s.repo.FollowArtist(ctx, artist); err != nil && s.logger != nil {
			s.logger.Warn("artist detail save failed", "artist", artist.Name, "error", err)
		}
	}

	if s.pool != nil {
		if err := s.pool.Submit(task); err == nil {
			return
		}
	}
	task()
}

// Language returns the preferred catalog language.
func (s *Service) Language(ctx context.Context) (string, error) {
	value, err := s.repo.GetSetting(ctx, settingLanguage)
	if err != nil {
		return "", err
	}
	if value == "" {
		return s.defaultLang, nil
	}
	return value, nil
}

// SetLanguage persists the preferred catalog language.
func (s *Service) SetLanguage(ctx context.Context, lang string) error {
	return s.repo.SetSetting(ctx, settingLanguage, lang)
}

// Autoplay reports whether infinite autoplay is on. Defaults to on.
func (s *Service) Autoplay(ctx context.Context) (bool, error) {
	value, err := s.repo.GetSetting(ctx, settingAutoplay)
	if err != nil {
		return false, err
	}
	if value == "" {
		return true, nil
	}
	on, err := strconv.ParseBool(value)
	if err != nil {
		return true, nil
	}
	return on, nil
}

// SetAutoplay persists the autoplay preference.
func (s *Service) SetAutoplay(ctx context.Context, on bool) error {
	return s.repo.SetSetting(ctx, settingAutoplay, strconv.FormatBool(on))
}
