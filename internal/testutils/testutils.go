package testutils

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/database"
)

const (
	tickerInterval = 10 * time.Millisecond
	scriptFileMode = 0o755
)

// TestConfig creates a configuration rooted in tempDir with fast intervals
// suitable for tests.
func TestConfig(tempDir string) *mdsconfig.Config {
	cfg := &mdsconfig.Config{}
	cfg.LogLevel = "error"
	cfg.Paths.DownloadDir = filepath.Join(tempDir, "media")
	cfg.Paths.TempDir = filepath.Join(tempDir, "media", ".incomplete")
	cfg.Paths.StateDir = filepath.Join(tempDir, "state")
	cfg.Paths.DatabasePath = filepath.Join(tempDir, "state", "media-library.db")
	cfg.Download.Format = "mkv"
	cfg.Download.AudioFormat = "m4a"
	cfg.Download.Playlist = true
	cfg.Queue.PollInterval = 50 * time.Millisecond
	cfg.Queue.HistoryLimit = 50
	cfg.Worker.IdleDelay = 20 * time.Millisecond
	cfg.Supervisor.GracefulTimeout = 2 * time.Second
	cfg.Supervisor.ForceTimeout = time.Second
	cfg.Tools.YtdlpPath = "yt-dlp"
	cfg.Tools.FfmpegPath = "ffmpeg"
	return cfg
}

// TestDatabase creates an initialized sqlite database under the config's
// state directory.
func TestDatabase(t *testing.T, cfg *mdsconfig.Config) database.Database {
	t.Helper()
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("Failed to create test directories: %v", err)
	}
	db, err := database.NewDatabase(cfg)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	return db
}

// RequireShell skips the test when no POSIX shell is available to run fake
// tool scripts.
func RequireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// WriteTool writes an executable fake-tool script and returns its path. The
// body runs under `#!/bin/sh`.
func WriteTool(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), scriptFileMode); err != nil {
		t.Fatalf("Failed to write fake tool: %v", err)
	}
	return path
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}
