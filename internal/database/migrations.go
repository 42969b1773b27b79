package database

import (
	"strings"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// migrateLegacySchema upgrades databases written by earlier releases in
// place. Each step tolerates already-migrated schemas.
func (s *SQLiteDatabase) migrateLegacySchema() error {
	if err := s.db.Exec("ALTER TABLE media_items ADD COLUMN media_type TEXT NOT NULL DEFAULT 'video'").Error; err != nil {
		if !strings.Contains(err.Error(), "duplicate column") {
			logutils.Log.WithError(err).Error("Failed to add media_type column")
			return err
		}
	} else {
		logutils.Log.Info("Added media_type column to media_items table")
	}

	if err := s.db.Exec("ALTER TABLE media_items ADD COLUMN playlist_total INTEGER NOT NULL DEFAULT 0").Error; err != nil {
		if !strings.Contains(err.Error(), "duplicate column") {
			logutils.Log.WithError(err).Error("Failed to add playlist_total column")
			return err
		}
	} else {
		logutils.Log.Info("Added playlist_total column to media_items table")
	}

	// Finished-download history moved from the database into the state
	// directory; the old table is dead weight.
	if err := s.db.Migrator().DropTable("download_histories"); err != nil {
		logutils.Log.WithError(err).Warn("Failed to drop download_histories table (it may not exist)")
	}

	return nil
}
