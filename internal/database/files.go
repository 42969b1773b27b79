package database

import (
	"context"
)

func (s *SQLiteDatabase) AddMediaFiles(ctx context.Context, mediaID uint, files []string, tempFiles bool) error {
	for _, file := range files {
		mediaFile := MediaFile{MediaItemID: mediaID, FilePath: file, TempFile: tempFiles}
		result := s.db.WithContext(ctx).Create(&mediaFile)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

func (s *SQLiteDatabase) GetFilesByMediaID(ctx context.Context, mediaID uint) ([]MediaFile, error) {
	var files []MediaFile
	result := s.db.WithContext(ctx).Where("media_item_id = ? AND temp_file = ?", mediaID, false).Find(&files)
	if result.Error != nil {
		return nil, result.Error
	}
	return files, nil
}

func (s *SQLiteDatabase) GetTempFilesByMediaID(ctx context.Context, mediaID uint) ([]MediaFile, error) {
	var files []MediaFile
	result := s.db.WithContext(ctx).Where("media_item_id = ? AND temp_file = ?", mediaID, true).Find(&files)
	if result.Error != nil {
		return nil, result.Error
	}
	return files, nil
}

func (s *SQLiteDatabase) RemoveFilesByMediaID(ctx context.Context, mediaID uint) error {
	result := s.db.WithContext(ctx).Where("media_item_id = ? AND temp_file = ?", mediaID, false).Delete(&MediaFile{})
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (s *SQLiteDatabase) RemoveTempFilesByMediaID(ctx context.Context, mediaID uint) error {
	result := s.db.WithContext(ctx).Where("media_item_id = ? AND temp_file = ?", mediaID, true).Delete(&MediaFile{})
	if result.Error != nil {
		return result.Error
	}
	return nil
}
