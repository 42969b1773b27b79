package ytdlp

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/media-download-server/internal/downloader"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

const updateTimeout = 3 * time.Minute

// RunUpdate asks the tool to self-update. Failures are logged and never
// fatal; an outdated binary still downloads.
func RunUpdate(ctx context.Context, binaryPath string) {
	if binaryPath == "" {
		binaryPath = defaultBinary
	}
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	cmd := exec.CommandContext(updateCtx, binaryPath, "-U")
	output, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(output))

	if err != nil {
		if updateCtx.Err() != nil {
			logutils.Log.WithError(err).Warn("yt-dlp update timed out or was canceled")
			return
		}
		logutils.Log.WithError(err).WithFields(map[string]any{
			"output": out,
			"binary": binaryPath,
		}).Warn("yt-dlp update failed")
		return
	}

	logutils.Log.WithFields(map[string]any{
		"binary": binaryPath,
		"output": out,
	}).Info("yt-dlp update check completed successfully")
}

type ytdlpUpdater struct{ binaryPath string }

func (u *ytdlpUpdater) RunUpdate(ctx context.Context) { RunUpdate(ctx, u.binaryPath) }

// NewUpdater adapts the self-update command to the generic periodic driver.
func NewUpdater(binaryPath string) downloader.Updater {
	if binaryPath == "" {
		binaryPath = defaultBinary
	}
	return &ytdlpUpdater{binaryPath: binaryPath}
}
