package database

import (
	"fmt"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SQLiteDatabase struct {
	db *gorm.DB
}

func NewSQLiteDatabase() *SQLiteDatabase {
	return &SQLiteDatabase{}
}

func (s *SQLiteDatabase) Init(config *mdsconfig.Config) error {
	db, err := gorm.Open(sqlite.Open(config.Paths.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	s.db = db

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *SQLiteDatabase) runMigrations() error {
	if err := s.db.AutoMigrate(&MediaItem{}, &MediaFile{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	if err := s.migrateLegacySchema(); err != nil {
		return fmt.Errorf("legacy schema migration failed: %w", err)
	}

	return nil
}
