package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vibeelabs/vibee-go/vibee"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repository provides access to the local database: the persistent
// cache tier plus the user's library state.
type Repository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a repository backed by SQLite.
func NewSQLiteRepository(dsn string, gormLogger logger.Interface) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}

	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	dbDir := filepath.Dir(dsn)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	if err := applySQLitePragmas(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&CacheEntryModel{},
		&LikedSongModel{},
		&PlaylistModel{},
		&PlaylistSongModel{},
		&FollowedArtistModel{},
		&SettingModel{},
	); err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Repository{db: db}, nil
}

// ConfigurePool updates the database connection pool settings.
func (r *Repository) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if maxOpen >= 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime >= 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	return nil
}

func applySQLitePragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-64000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Get implements vibee.KVStore. A missing key returns (nil, nil).
func (r *Repository) Get(ctx context.Context, key string) (*vibee.KVEntry, error) {
	var model CacheEntryModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vibee.KVEntry{Payload: model.Payload, UpdatedAt: model.UpdatedAt}, nil
}

// Set implements vibee.KVStore with an upsert on key.
func (r *Repository) Set(ctx context.Context, key string, payload []byte) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at", "deleted_at"}),
	}).Create(&CacheEntryModel{Key: key, Payload: payload}).Error
}

// Delete implements vibee.KVStore.
func (r *Repository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&CacheEntryModel{}, "key = ?", key).Error
}

// AddLike stores a liked song. Re-liking an existing song is a no-op.
func (r *Repository) AddLike(ctx context.Context, song vibee.Song) error {
	payload, err := json.Marshal(song)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "song_id"}},
		DoNothing: true,
	}).Create(&LikedSongModel{SongID: song.ID, Payload: payload}).Error
}

// RemoveLike deletes a liked song by id.
func (r *Repository) RemoveLike(ctx context.Context, songID string) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&LikedSongModel{}, "song_id = ?", songID).Error
}

// IsLiked reports whether songID is in the liked set.
func (r *Repository) IsLiked(ctx context.Context, songID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&LikedSongModel{}).Where("song_id = ?", songID).Count(&count).Error
	return count > 0, err
}

// LikedSongs returns all liked songs, newest first.
func (r *Repository) LikedSongs(ctx context.Context) ([]vibee.Song, error) {
	var models []LikedSongModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	songs := make([]vibee.Song, 0, len(models))
	for _, m := range models {
		var song vibee.Song
		if err := json.Unmarshal(m.Payload, &song); err != nil {
			continue
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// CreatePlaylist inserts a new playlist record.
func (r *Repository) CreatePlaylist(ctx context.Context, p vibee.Playlist) error {
	return r.db.WithContext(ctx).Create(&PlaylistModel{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
	}).Error
}

// Playlists returns all playlists, newest first.
func (r *Repository) Playlists(ctx context.Context) ([]vibee.Playlist, error) {
	var models []PlaylistModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]vibee.Playlist, 0, len(models))
	for _, m := range models {
		out = append(out, vibee.Playlist{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return out, nil
}

// DeletePlaylist removes a playlist and its song links.
func (r *Repository) DeletePlaylist(ctx context.Context, playlistID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Delete(&PlaylistSongModel{}, "playlist_id = ?", playlistID).Error; err != nil {
			return err
		}
		return tx.Delete(&PlaylistModel{}, "id = ?", playlistID).Error
	})
}

// AddPlaylistSong links a song to a playlist. Returns false when the
// song is already in the playlist.
func (r *Repository) AddPlaylistSong(ctx context.Context, playlistID string, song vibee.Song) (bool, error) {
	payload, err := json.Marshal(song)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "playlist_id"}, {Name: "song_id"}},
		DoNothing: true,
	}).Create(&PlaylistSongModel{PlaylistID: playlistID, SongID: song.ID, Payload: payload})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PlaylistSongs returns a playlist's songs in insertion order.
func (r *Repository) PlaylistSongs(ctx context.Context, playlistID string) ([]vibee.Song, error) {
	var models []PlaylistSongModel
	err := r.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	songs := make([]vibee.Song, 0, len(models))
	for _, m := range models {
		var song vibee.Song
		if err := json.Unmarshal(m.Payload, &song); err != nil {
			continue
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// FollowArtist upserts a followed artist.
func (r *Repository) FollowArtist(ctx context.Context, artist vibee.ArtistSearchResult) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "artist_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "image", "updated_at", "deleted_at"}),
	}).Create(&FollowedArtistModel{
		ArtistID: artist.ID,
		Name:     artist.Name,
		Image:    artist.Image,
	}).Error
}

// UnfollowArtist removes a followed artist by id.
func (r *Repository) UnfollowArtist(ctx context.Context, artistID string) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&FollowedArtistModel{}, "artist_id = ?", artistID).Error
}

// IsFollowed reports whether artistID is followed.
func (r *Repository) IsFollowed(ctx context.Context, artistID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&FollowedArtistModel{}).Where("artist_id = ?", artistID).Count(&count).Error
	return count > 0, err
}

// FollowedArtists returns all followed artists, newest first.
func (r *Repository) FollowedArtists(ctx context.Context) ([]vibee.ArtistSearchResult, error) {
	var models []FollowedArtistModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]vibee.ArtistSearchResult, 0, len(models))
	for _, m := range models {
		out = append(out, vibee.ArtistSearchResult{
			ID:    m.ArtistID,
			Name:  m.Name,
			Image: m.Image,
			Role:  "Artist",
			Type:  "artist",
		})
	}
	return out, nil
}

// GetSetting returns a preference value, or "" when unset.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.Value, nil
}

// SetSetting upserts a preference value.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "deleted_at"}),
	}).Create(&SettingModel{Key: key, Value: value}).Error
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
