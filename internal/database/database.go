package database

import (
	"context"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// MediaReader is the read-only subset of the media library. Use in handlers that only list or read items.
type MediaReader interface {
	GetMediaList(ctx context.Context) ([]MediaItem, error)
	GetMediaByID(ctx context.Context, mediaID uint) (MediaItem, error)
	GetFilesByMediaID(ctx context.Context, mediaID uint) ([]MediaFile, error)
	GetTempFilesByMediaID(ctx context.Context, mediaID uint) ([]MediaFile, error)
	MediaExistsID(ctx context.Context, mediaID uint) (bool, error)
	MediaExistsByURL(ctx context.Context, url, mediaType string) (bool, error)
}

// MediaWriter is the write subset for library items and their files.
type MediaWriter interface {
	AddMediaItem(ctx context.Context, title, url, mediaType string, playlistTotal int) (uint, error)
	AddMediaFiles(ctx context.Context, mediaID uint, files []string, tempFiles bool) error
	UpdateTitle(ctx context.Context, mediaID uint, title string) error
	UpdateDownloadedPercentage(ctx context.Context, mediaID uint, percentage int) error
	SetPlaylistTotal(ctx context.Context, mediaID uint, total int) error
	UpdatePlaylistProgress(ctx context.Context, mediaID uint, completed int) error
	SetFileSize(ctx context.Context, mediaID uint, size int64) error
	SetCompleted(ctx context.Context, mediaID uint) error
	RemoveMediaItem(ctx context.Context, mediaID uint) error
	RemoveFilesByMediaID(ctx context.Context, mediaID uint) error
	RemoveTempFilesByMediaID(ctx context.Context, mediaID uint) error
}

// Database is the full storage interface.
type Database interface {
	Init(config *mdsconfig.Config) error
	MediaReader
	MediaWriter
}

func NewDatabase(config *mdsconfig.Config) (Database, error) {
	database := NewSQLiteDatabase()
	if err := database.Init(config); err != nil {
		logutils.Log.WithError(err).Error("Failed to initialize the database")
		return nil, err
	}

	logutils.Log.Info("Database initialized successfully")
	return database, nil
}
