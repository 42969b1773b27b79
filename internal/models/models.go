package models

import "time"

// MediaItem is one queued-then-downloaded media entry. A row is created
// when the download starts, updated live while the tool runs and kept as
// the library record after completion.
type MediaItem struct {
	ID                   uint        `json:"id"                    gorm:"primaryKey"`
	Title                string      `json:"title"                 gorm:"not null"`
	URL                  string      `json:"url"                   gorm:"not null"`
	MediaType            string      `json:"media_type"            gorm:"not null;default:'video'"`
	DownloadedPercentage int         `json:"downloaded_percentage" gorm:"not null;default:0"`
	FileSize             int64       `json:"file_size"             gorm:"not null;default:0"`
	PlaylistTotal        int         `json:"playlist_total"        gorm:"not null;default:0"` // > 0 for playlists (multi-entry source)
	PlaylistCompleted    int         `json:"playlist_completed"    gorm:"not null;default:0"` // how many entries fully downloaded
	Completed            bool        `json:"completed"             gorm:"not null;default:false"`
	Files                []MediaFile `json:"files"                 gorm:"foreignKey:MediaItemID"`
	CreatedAt            time.Time   `json:"created_at"            gorm:"autoCreateTime"`
	UpdatedAt            time.Time   `json:"updated_at"            gorm:"autoUpdateTime"`
}

type MediaFile struct {
	ID          uint      `json:"id"            gorm:"primaryKey"`
	MediaItemID uint      `json:"media_item_id" gorm:"not null;constraint:OnDelete:CASCADE;"`
	FilePath    string    `json:"file_path"     gorm:"not null"`
	TempFile    bool      `json:"temp_file"     gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"    gorm:"autoCreateTime"`
}
