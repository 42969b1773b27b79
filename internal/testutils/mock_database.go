package testutils

import (
	"context"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/database"
)

// DatabaseStub implements database.Database with no-op methods.
// Embed it in test-specific mocks and override only the methods you need.
type DatabaseStub struct{}

func (*DatabaseStub) Init(_ *mdsconfig.Config) error {
	return nil
}

// MediaReader methods.

func (*DatabaseStub) GetMediaList(_ context.Context) ([]database.MediaItem, error) {
	return nil, nil
}

func (*DatabaseStub) GetMediaByID(_ context.Context, _ uint) (database.MediaItem, error) {
	return database.MediaItem{}, nil
}

func (*DatabaseStub) GetFilesByMediaID(_ context.Context, _ uint) ([]database.MediaFile, error) {
	return nil, nil
}

func (*DatabaseStub) GetTempFilesByMediaID(_ context.Context, _ uint) ([]database.MediaFile, error) {
	return nil, nil
}

func (*DatabaseStub) MediaExistsID(_ context.Context, _ uint) (bool, error) {
	return false, nil
}

func (*DatabaseStub) MediaExistsByURL(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

// MediaWriter methods.

func (*DatabaseStub) AddMediaItem(_ context.Context, _, _, _ string, _ int) (uint, error) {
	return 1, nil
}

func (*DatabaseStub) AddMediaFiles(_ context.Context, _ uint, _ []string, _ bool) error {
	return nil
}

func (*DatabaseStub) UpdateTitle(_ context.Context, _ uint, _ string) error {
	return nil
}

func (*DatabaseStub) UpdateDownloadedPercentage(_ context.Context, _ uint, _ int) error {
	return nil
}

func (*DatabaseStub) SetPlaylistTotal(_ context.Context, _ uint, _ int) error {
	return nil
}

func (*DatabaseStub) UpdatePlaylistProgress(_ context.Context, _ uint, _ int) error {
	return nil
}

func (*DatabaseStub) SetFileSize(_ context.Context, _ uint, _ int64) error {
	return nil
}

func (*DatabaseStub) SetCompleted(_ context.Context, _ uint) error {
	return nil
}

func (*DatabaseStub) RemoveMediaItem(_ context.Context, _ uint) error {
	return nil
}

func (*DatabaseStub) RemoveFilesByMediaID(_ context.Context, _ uint) error {
	return nil
}

func (*DatabaseStub) RemoveTempFilesByMediaID(_ context.Context, _ uint) error {
	return nil
}
