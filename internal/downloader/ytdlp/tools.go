package ytdlp

import (
	"os/exec"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

// VerifyTools checks the external binaries before the worker starts. A
// missing downloader is fatal; a missing transcode tool only restricts the
// format ladder to pre-merged attempts.
func VerifyTools(ytdlpPath, ffmpegPath string) (hasFFmpeg bool, err error) {
	if ytdlpPath == "" {
		ytdlpPath = defaultBinary
	}
	if _, lookErr := exec.LookPath(ytdlpPath); lookErr != nil {
		return false, utils.WrapError(lookErr, "downloader binary not found", map[string]any{
			"binary": ytdlpPath,
		})
	}

	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if _, lookErr := exec.LookPath(ffmpegPath); lookErr != nil {
		logutils.Log.WithField("binary", ffmpegPath).Warn(
			"Transcode tool not found, merged and extracted formats are disabled")
		return false, nil
	}
	return true, nil
}
