package filemanager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	mdsdb "github.com/NikitaDmitryuk/media-download-server/internal/database"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

func IsEmptyDirectory(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to read directory: %s", dir)
		return false
	}
	return len(entries) == 0
}

// CleanupByPrefix removes leftover tool artifacts for one job from dir,
// matched by recovered base name. Best effort: a file that is already gone
// is not an error. With keepMedia set, finished media outputs survive and
// only intermediates (partials, split streams, merge temps, thumbnails)
// are removed.
func CleanupByPrefix(dir, baseName string, keepMedia bool) int {
	if dir == "" || baseName == "" {
		return 0
	}

	pattern := filepath.Join(dir, baseName+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		logrus.WithError(err).Warnf("Failed to find files matching pattern %s", pattern)
		return 0
	}

	removed := 0
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if utils.BaseNameFromToolFile(match) != baseName {
			// "Clip 2.mp4" also globs under "Clip*" but belongs to
			// another job.
			continue
		}
		if keepMedia && !utils.IsIntermediateFile(match) {
			continue
		}
		if err := os.Remove(match); err != nil {
			if !os.IsNotExist(err) {
				logrus.WithError(err).Warnf("Failed to delete file %s", match)
			}
			continue
		}
		logrus.Debugf("Removed leftover file %s", match)
		removed++
	}
	return removed
}

func DeleteTemporaryFilesByMediaID(ctx context.Context, db mdsdb.Database, basePath string, mediaID uint) error {
	tempFiles, err := db.GetTempFilesByMediaID(ctx, mediaID)
	if err != nil {
		logrus.WithError(err).Error("Failed to get temporary files by media ID")
		return utils.WrapError(err, "failed to get temporary files", map[string]any{"media_id": mediaID})
	}

	deleteFiles(basePath, tempFiles)

	if err := db.RemoveTempFilesByMediaID(ctx, mediaID); err != nil {
		logrus.WithError(err).Error("Failed to remove temporary files from database")
		return utils.WrapError(err, "failed to remove temporary files from database", map[string]any{"media_id": mediaID})
	}

	return nil
}

func DeleteMainFilesByMediaID(ctx context.Context, db mdsdb.Database, basePath string, mediaID uint) error {
	mainFiles, err := db.GetFilesByMediaID(ctx, mediaID)
	if err != nil {
		logrus.WithError(err).Error("Failed to get main files by media ID")
		return utils.WrapError(err, "failed to get main files", map[string]any{"media_id": mediaID})
	}

	deleteFiles(basePath, mainFiles)

	if err := db.RemoveFilesByMediaID(ctx, mediaID); err != nil {
		logrus.WithError(err).Error("Failed to remove main files from database")
		return utils.WrapError(err, "failed to remove main files from database", map[string]any{"media_id": mediaID})
	}

	return nil
}

// DeleteMediaItem removes a library entry and everything it left on disk.
// The caller is responsible for stopping an active download of the same
// item first.
func DeleteMediaItem(ctx context.Context, db mdsdb.Database, basePath string, mediaID uint) error {
	exists, err := db.MediaExistsID(ctx, mediaID)
	if err != nil {
		return utils.WrapError(err, "failed to check media item", map[string]any{"media_id": mediaID})
	}
	if !exists {
		return utils.WrapError(utils.ErrDatabaseError, "media item not found", map[string]any{"media_id": mediaID})
	}

	if err := DeleteTemporaryFilesByMediaID(ctx, db, basePath, mediaID); err != nil {
		logrus.WithError(err).Error("Failed to delete temporary files")
	}
	if err := DeleteMainFilesByMediaID(ctx, db, basePath, mediaID); err != nil {
		logrus.WithError(err).Error("Failed to delete main files")
	}

	if err := db.RemoveMediaItem(ctx, mediaID); err != nil {
		logrus.WithError(err).Error("Failed to remove media item from database")
		return utils.WrapError(err, "failed to remove media item from database", map[string]any{"media_id": mediaID})
	}

	logrus.Infof("Media item %d and all associated files deleted", mediaID)
	return nil
}

func deleteFiles(basePath string, files []mdsdb.MediaFile) {
	foldersToDelete := make(map[string]struct{})

	for _, file := range files {
		filePath := file.FilePath
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(basePath, filePath)
		}

		foldersToDelete[filepath.Dir(filePath)] = struct{}{}

		fileInfo, err := os.Stat(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				logrus.WithError(err).Warnf("Failed to stat file %s", filePath)
			}
			continue
		}

		if fileInfo.IsDir() {
			if err := os.RemoveAll(filePath); err != nil {
				logrus.WithError(err).Warnf("Failed to delete folder %s", filePath)
			}
			continue
		}

		if err := os.Remove(filePath); err != nil {
			logrus.WithError(err).Warnf("Failed to delete file %s", filePath)
		}

		// Sidecar artifacts (partials, thumbnails) share the file's prefix.
		pattern := filePath + "*"
		matchedFiles, err := filepath.Glob(pattern)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to find files matching pattern %s", pattern)
			continue
		}
		for _, matchedFile := range matchedFiles {
			if err := os.Remove(matchedFile); err != nil && !os.IsNotExist(err) {
				logrus.WithError(err).Warnf("Failed to delete file %s", matchedFile)
			}
		}
	}

	for folderPath := range foldersToDelete {
		if folderPath == basePath || !IsEmptyDirectory(folderPath) {
			continue
		}
		if err := os.Remove(folderPath); err != nil {
			logrus.WithError(err).Warnf("Failed to delete folder %s", folderPath)
		}
	}
}
