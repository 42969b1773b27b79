package database

import (
	"context"
)

func (s *SQLiteDatabase) AddMediaItem(
	ctx context.Context,
	title, url, mediaType string,
	playlistTotal int,
) (uint, error) {
	item := MediaItem{
		Title:         title,
		URL:           url,
		MediaType:     mediaType,
		PlaylistTotal: playlistTotal,
	}

	result := s.db.WithContext(ctx).Create(&item)
	if result.Error != nil {
		return 0, result.Error
	}

	return item.ID, nil
}

func (s *SQLiteDatabase) UpdateTitle(ctx context.Context, mediaID uint, title string) error {
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", mediaID).Update("title", title)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) RemoveMediaItem(ctx context.Context, mediaID uint) error {
	result := s.db.WithContext(ctx).Delete(&MediaItem{}, mediaID)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) GetMediaList(ctx context.Context) ([]MediaItem, error) {
	var items []MediaItem
	result := s.db.WithContext(ctx).Find(&items)
	if result.Error != nil {
		return nil, result.Error
	}
	return items, nil
}

func (s *SQLiteDatabase) UpdateDownloadedPercentage(ctx context.Context, mediaID uint, percentage int) error {
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", mediaID).Update("downloaded_percentage", percentage)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) SetPlaylistTotal(ctx context.Context, mediaID uint, total int) error {
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", mediaID).Update("playlist_total", total)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) UpdatePlaylistProgress(ctx context.Context, mediaID uint, completed int) error {
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", mediaID).Update("playlist_completed", completed)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) SetFileSize(ctx context.Context, mediaID uint, size int64) error {
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", mediaID).Update("file_size", size)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) SetCompleted(ctx context.Context, mediaID uint) error {
	const completePercentage = 100
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", mediaID).Updates(map[string]any{
		"completed":             true,
		"downloaded_percentage": completePercentage,
	})
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) GetMediaByID(ctx context.Context, mediaID uint) (MediaItem, error) {
	var item MediaItem
	result := s.db.WithContext(ctx).First(&item, mediaID)
	if result.Error != nil {
		return MediaItem{}, result.Error
	}
	return item, nil
}

func (s *SQLiteDatabase) MediaExistsID(ctx context.Context, mediaID uint) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", mediaID).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (s *SQLiteDatabase) MediaExistsByURL(ctx context.Context, url, mediaType string) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&MediaItem{}).Where("url = ? AND media_type = ?", url, mediaType).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}
