package database

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDatabase(t *testing.T) *SQLiteDatabase {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if migErr := db.AutoMigrate(&MediaItem{}, &MediaFile{}); migErr != nil {
		t.Fatalf("Failed to migrate: %v", migErr)
	}
	return &SQLiteDatabase{db: db}
}

func TestAddMediaItemWithPlaylist(t *testing.T) {
	s := newTestDatabase(t)
	ctx := context.Background()

	const playlistTotal = 8
	mediaID, err := s.AddMediaItem(ctx, "Test Playlist", "https://example.com/playlist?list=a1", "video", playlistTotal)
	if err != nil {
		t.Fatalf("AddMediaItem: %v", err)
	}
	if mediaID == 0 {
		t.Fatal("AddMediaItem returned 0 ID")
	}

	list, err := s.GetMediaList(ctx)
	if err != nil {
		t.Fatalf("GetMediaList: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 item, got %d", len(list))
	}
	item := list[0]
	if item.PlaylistTotal != playlistTotal {
		t.Errorf("PlaylistTotal: want %d, got %d", playlistTotal, item.PlaylistTotal)
	}
	if item.PlaylistCompleted != 0 {
		t.Errorf("PlaylistCompleted: want 0, got %d", item.PlaylistCompleted)
	}
	if item.Completed {
		t.Error("Fresh item must not be completed")
	}
}

func TestUpdatePlaylistProgress(t *testing.T) {
	s := newTestDatabase(t)
	ctx := context.Background()

	mediaID, err := s.AddMediaItem(ctx, "Playlist", "https://example.com/playlist?list=b2", "video", 5)
	if err != nil {
		t.Fatalf("AddMediaItem: %v", err)
	}

	if updateErr := s.UpdatePlaylistProgress(ctx, mediaID, 2); updateErr != nil {
		t.Fatalf("UpdatePlaylistProgress: %v", updateErr)
	}
	if totalErr := s.SetPlaylistTotal(ctx, mediaID, 7); totalErr != nil {
		t.Fatalf("SetPlaylistTotal: %v", totalErr)
	}

	item, err := s.GetMediaByID(ctx, mediaID)
	if err != nil {
		t.Fatalf("GetMediaByID: %v", err)
	}
	if item.PlaylistCompleted != 2 {
		t.Errorf("PlaylistCompleted: want 2, got %d", item.PlaylistCompleted)
	}
	if item.PlaylistTotal != 7 {
		t.Errorf("PlaylistTotal: want 7, got %d", item.PlaylistTotal)
	}
}

func TestSetCompletedForcesFullPercentage(t *testing.T) {
	s := newTestDatabase(t)
	ctx := context.Background()

	mediaID, err := s.AddMediaItem(ctx, "Clip", "https://example.com/watch?v=c3", "video", 0)
	if err != nil {
		t.Fatalf("AddMediaItem: %v", err)
	}
	if updateErr := s.UpdateDownloadedPercentage(ctx, mediaID, 55); updateErr != nil {
		t.Fatalf("UpdateDownloadedPercentage: %v", updateErr)
	}

	if completeErr := s.SetCompleted(ctx, mediaID); completeErr != nil {
		t.Fatalf("SetCompleted: %v", completeErr)
	}

	item, err := s.GetMediaByID(ctx, mediaID)
	if err != nil {
		t.Fatalf("GetMediaByID: %v", err)
	}
	if !item.Completed {
		t.Error("Completed: want true")
	}
	if item.DownloadedPercentage != 100 {
		t.Errorf("DownloadedPercentage: want 100, got %d", item.DownloadedPercentage)
	}
}

func TestMediaExistsByURL(t *testing.T) {
	s := newTestDatabase(t)
	ctx := context.Background()

	url := "https://example.com/watch?v=d4"
	if _, err := s.AddMediaItem(ctx, "Clip", url, "video", 0); err != nil {
		t.Fatalf("AddMediaItem: %v", err)
	}

	exists, err := s.MediaExistsByURL(ctx, url, "video")
	if err != nil {
		t.Fatalf("MediaExistsByURL: %v", err)
	}
	if !exists {
		t.Error("want exists for same url and type")
	}

	exists, err = s.MediaExistsByURL(ctx, url, "audio")
	if err != nil {
		t.Fatalf("MediaExistsByURL: %v", err)
	}
	if exists {
		t.Error("audio variant of a video item must not count as existing")
	}
}

func TestUpdateTitle(t *testing.T) {
	s := newTestDatabase(t)
	ctx := context.Background()

	mediaID, err := s.AddMediaItem(ctx, "https://example.com/watch?v=e5", "https://example.com/watch?v=e5", "video", 0)
	if err != nil {
		t.Fatalf("AddMediaItem: %v", err)
	}

	if updateErr := s.UpdateTitle(ctx, mediaID, "Resolved Title"); updateErr != nil {
		t.Fatalf("UpdateTitle: %v", updateErr)
	}

	item, err := s.GetMediaByID(ctx, mediaID)
	if err != nil {
		t.Fatalf("GetMediaByID: %v", err)
	}
	if item.Title != "Resolved Title" {
		t.Errorf("Title: want %q, got %q", "Resolved Title", item.Title)
	}
}

func TestFileRoundTripAndRemoval(t *testing.T) {
	s := newTestDatabase(t)
	ctx := context.Background()

	mediaID, err := s.AddMediaItem(ctx, "Clip", "https://example.com/watch?v=f6", "video", 0)
	if err != nil {
		t.Fatalf("AddMediaItem: %v", err)
	}

	if addErr := s.AddMediaFiles(ctx, mediaID, []string{"/media/clip.mp4"}, false); addErr != nil {
		t.Fatalf("AddMediaFiles main: %v", addErr)
	}
	if addErr := s.AddMediaFiles(ctx, mediaID, []string{"/tmp/clip.mp4.part", "/tmp/clip.f137.mp4"}, true); addErr != nil {
		t.Fatalf("AddMediaFiles temp: %v", addErr)
	}

	mainFiles, err := s.GetFilesByMediaID(ctx, mediaID)
	if err != nil {
		t.Fatalf("GetFilesByMediaID: %v", err)
	}
	if len(mainFiles) != 1 || mainFiles[0].FilePath != "/media/clip.mp4" {
		t.Errorf("main files = %v, want the single final path", mainFiles)
	}

	tempFiles, err := s.GetTempFilesByMediaID(ctx, mediaID)
	if err != nil {
		t.Fatalf("GetTempFilesByMediaID: %v", err)
	}
	if len(tempFiles) != 2 {
		t.Errorf("temp files = %d, want 2", len(tempFiles))
	}

	if removeErr := s.RemoveTempFilesByMediaID(ctx, mediaID); removeErr != nil {
		t.Fatalf("RemoveTempFilesByMediaID: %v", removeErr)
	}
	tempFiles, err = s.GetTempFilesByMediaID(ctx, mediaID)
	if err != nil {
		t.Fatalf("GetTempFilesByMediaID after removal: %v", err)
	}
	if len(tempFiles) != 0 {
		t.Errorf("temp files after removal = %d, want 0", len(tempFiles))
	}

	mainFiles, err = s.GetFilesByMediaID(ctx, mediaID)
	if err != nil {
		t.Fatalf("GetFilesByMediaID after temp removal: %v", err)
	}
	if len(mainFiles) != 1 {
		t.Errorf("main files after temp removal = %d, want 1", len(mainFiles))
	}
}

func TestRemoveMediaItem(t *testing.T) {
	s := newTestDatabase(t)
	ctx := context.Background()

	mediaID, err := s.AddMediaItem(ctx, "Clip", "https://example.com/watch?v=g7", "video", 0)
	if err != nil {
		t.Fatalf("AddMediaItem: %v", err)
	}

	if removeErr := s.RemoveMediaItem(ctx, mediaID); removeErr != nil {
		t.Fatalf("RemoveMediaItem: %v", removeErr)
	}

	exists, err := s.MediaExistsID(ctx, mediaID)
	if err != nil {
		t.Fatalf("MediaExistsID: %v", err)
	}
	if exists {
		t.Error("item still exists after removal")
	}
}
