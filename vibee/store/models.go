package store

import (
	"time"

	"gorm.io/gorm"
)

// CacheEntryModel is one persisted cache record. Payload holds the
// cache tier's own JSON envelope; the store never interprets it.
type CacheEntryModel struct {
	gorm.Model
	Key     string `gorm:"uniqueIndex;not null"`
	Payload []byte
}

func (CacheEntryModel) TableName() string {
	return "cache_entries"
}

// LikedSongModel stores one liked song with its full normalized payload.
type LikedSongModel struct {
	gorm.Model
	SongID  string `gorm:"uniqueIndex;not null"`
	Payload []byte
}

func (LikedSongModel) TableName() string {
	return "liked_songs"
}

// PlaylistModel stores one user playlist. IDs are UUIDs assigned at
// creation time.
type PlaylistModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PlaylistModel) TableName() string {
	return "playlists"
}

// PlaylistSongModel links a song to a playlist. The unique index is the
// duplicate guard.
type PlaylistSongModel struct {
	gorm.Model
	PlaylistID string `gorm:"not null;index:idx_playlist_song,unique"`
	SongID     string `gorm:"not null;index:idx_playlist_song,unique"`
	Payload    []byte
}

func (PlaylistSongModel) TableName() string {
	return "playlist_songs"
}

// FollowedArtistModel stores one followed artist.
type FollowedArtistModel struct {
	gorm.Model
	ArtistID string `gorm:"uniqueIndex;not null"`
	Name     string
	Image    string
}

func (FollowedArtistModel) TableName() string {
	return "followed_artists"
}

// SettingModel stores one user preference as a key-value pair.
type SettingModel struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value string
}

func (SettingModel) TableName() string {
	return "settings"
}
