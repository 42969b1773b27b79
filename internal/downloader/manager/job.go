package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/NikitaDmitryuk/media-download-server/internal/downloader"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/ytdlp"
	"github.com/NikitaDmitryuk/media-download-server/internal/filemanager"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/queue"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

const archiveFileName = "archive.txt"

// runJob drives one queued request through the fallback chain until a
// terminal outcome. Attempt-level failures stay internal; only the last
// attempt's error becomes visible.
func (dm *DownloadManager) runJob(ctx context.Context, item queue.Item) downloader.Outcome {
	attempts := ytdlp.PlanAttempts(
		item.MediaType == queue.MediaTypeAudio,
		dm.cfg.Download.Format,
		dm.cfg.Download.AudioFormat,
		dm.hasFFmpeg,
	)

	logutils.Log.WithFields(map[string]any{
		"url":        item.URL,
		"media_type": item.MediaType,
		"attempts":   len(attempts),
	}).Info("Starting download")

	sess := newSession(item, len(attempts))
	mediaID, err := dm.db.AddMediaItem(ctx, item.URL, item.URL, item.MediaType, 0)
	if err != nil {
		logutils.Log.WithError(err).WithField("url", item.URL).Error(
			"Failed to create media library entry, continuing without live progress")
	}
	sess.mediaID = mediaID

	dm.setSession(sess)
	defer dm.clearSession()

	dm.queueNote.OnStarted(sess.Title())

	var lastFailure string
	for i, attempt := range attempts {
		if sess.Cancelled() {
			break
		}
		sess.beginAttempt(i, attempt)

		exitCode, tail, runErr := dm.runAttempt(ctx, sess, item, attempt)
		if sess.Cancelled() {
			break
		}
		if runErr == nil && exitCode == 0 {
			return dm.finishSuccess(sess)
		}

		lastFailure = attemptFailureSummary(exitCode, tail, runErr)
		logutils.Log.WithFields(map[string]any{
			"url":     item.URL,
			"attempt": i + 1,
			"of":      len(attempts),
			"reason":  lastFailure,
		}).Warn("Format attempt failed")

		if i < len(attempts)-1 {
			dm.cleanupLeftovers(sess)
			dm.queueNote.OnFallback(sess.Title(), i+2, len(attempts))
		}
	}

	if sess.Cancelled() {
		return dm.finishCancelled(sess)
	}
	return dm.finishFailed(sess, lastFailure)
}

// runAttempt executes the tool once and feeds its output through the
// classifier. Pause is honored between lines; cancel breaks the loop and
// tears the subprocess tree down.
func (dm *DownloadManager) runAttempt(
	ctx context.Context,
	sess *session,
	item queue.Item,
	attempt ytdlp.Attempt,
) (exitCode int, tail string, err error) {
	opts := ytdlp.Options{
		URL:            item.URL,
		AudioOnly:      item.MediaType == queue.MediaTypeAudio,
		OutputDir:      dm.cfg.Paths.DownloadDir,
		TempDir:        dm.cfg.Paths.TempDir,
		RateLimit:      dm.cfg.Download.RateLimit,
		Playlist:       dm.cfg.Download.Playlist,
		AudioFormat:    dm.cfg.Download.AudioFormat,
		EmbedThumbnail: dm.cfg.Download.EmbedThumbnail,
		CookiesFile:    dm.cfg.Download.CookiesFile,
		CookiesBrowser: dm.cfg.Download.CookiesBrowser,
		FfmpegPath:     dm.cfg.Tools.FfmpegPath,
	}
	if dm.cfg.Download.Archive {
		opts.ArchiveFile = filepath.Join(dm.cfg.Paths.StateDir, archiveFileName)
	}

	handle, err := dm.supervisor.Start(ctx, dm.cfg.Tools.YtdlpPath, ytdlp.BuildArgs(opts, attempt), dm.cfg.Paths.DownloadDir)
	if err != nil {
		return -1, "", err
	}
	dm.setHandle(handle)

	for line := range handle.Lines() {
		if !sess.awaitResume() {
			break
		}
		dm.applyLine(ctx, sess, dm.classifier.Classify(line))
	}

	if sess.Cancelled() && !handle.Exited() {
		if terr := dm.supervisor.Terminate(handle); terr != nil {
			logutils.Log.WithError(terr).Warn("Subprocess tree not confirmed dead, manual cleanup may be required")
		}
	}

	exitCode, err = handle.Wait()
	return exitCode, handle.ErrorTail(), err
}

// applyLine folds one classified output line into the session and mirrors
// the interesting changes into the media library.
func (dm *DownloadManager) applyLine(ctx context.Context, sess *session, event ytdlp.Event) {
	switch event.Kind {
	case ytdlp.EventDownloadedFile, ytdlp.EventMediaPath:
		sess.addFile(event.Path)
		logutils.Log.WithField("file", event.Path).Debug("Output file resolved")

	case ytdlp.EventPlaylistItem:
		sess.setPlaylistItem(event.Index, event.Total)
		if sess.mediaID != 0 {
			if err := dm.db.SetPlaylistTotal(ctx, sess.mediaID, event.Total); err != nil {
				logutils.Log.WithError(err).Debug("Failed to store playlist size")
			}
			if event.Index > 1 {
				if err := dm.db.UpdatePlaylistProgress(ctx, sess.mediaID, event.Index-1); err != nil {
					logutils.Log.WithError(err).Debug("Failed to store playlist progress")
				}
			}
		}

	case ytdlp.EventTitle:
		if !utils.IsValidLink(event.Title) {
			sess.addBase(event.Title)
		}
		sess.setTitle(event.Title)
		if sess.mediaID != 0 {
			if err := dm.db.UpdateTitle(ctx, sess.mediaID, sess.Title()); err != nil {
				logutils.Log.WithError(err).Debug("Failed to store title")
			}
		}

	case ytdlp.EventSkip:
		skipped := sess.noteSkip()
		logutils.Log.WithFields(map[string]any{
			"url":     sess.job.URL,
			"skipped": skipped,
		}).Debug("Item already present, skipping")
		dm.cleanupLeftovers(sess)

	case ytdlp.EventConverting:
		sess.setStage(downloader.StatusConverting)
	case ytdlp.EventMerging:
		sess.setStage(downloader.StatusMerging)
	case ytdlp.EventPostProcessing:
		sess.setStage(downloader.StatusPostProcessing)

	case ytdlp.EventProgress:
		sess.setDownloading(event.Percent)
		dm.persistPercent(ctx, sess)

	case ytdlp.EventNone:
	}
}

// persistPercent mirrors the integer percent into the library row, writing
// only on change so a chatty tool does not flood the database.
func (dm *DownloadManager) persistPercent(ctx context.Context, sess *session) {
	if sess.mediaID == 0 {
		return
	}
	percent := int(sess.snapshot().Percent)
	if percent == sess.lastStoredPercent {
		return
	}
	sess.lastStoredPercent = percent
	if err := dm.db.UpdateDownloadedPercentage(ctx, sess.mediaID, percent); err != nil {
		logutils.Log.WithError(err).Debug("Failed to store progress")
	}
}

func (dm *DownloadManager) finishSuccess(sess *session) downloader.Outcome {
	sess.markCompleted()
	ctx := context.Background()
	files := sess.Files()
	title := sess.Title()

	if sess.mediaID != 0 {
		if len(files) > 0 {
			if err := dm.db.AddMediaFiles(ctx, sess.mediaID, dm.relativeFiles(files), false); err != nil {
				logutils.Log.WithError(err).Error("Failed to record downloaded files")
			}
			if size := totalFileSize(files); size > 0 {
				if err := dm.db.SetFileSize(ctx, sess.mediaID, size); err != nil {
					logutils.Log.WithError(err).Debug("Failed to store file size")
				}
			}
		}
		if total := sess.snapshot().PlaylistTotal; total > 0 {
			if err := dm.db.UpdatePlaylistProgress(ctx, sess.mediaID, total); err != nil {
				logutils.Log.WithError(err).Debug("Failed to store playlist progress")
			}
		}
		if err := dm.db.SetCompleted(ctx, sess.mediaID); err != nil {
			logutils.Log.WithError(err).Error("Failed to mark media as completed")
		}
	}

	dm.cleanupLeftovers(sess)

	uploadNote := ""
	if dm.uploader.Enabled() && len(files) > 0 {
		location, err := dm.uploader.UploadFiles(ctx, files, sess.job.MediaType)
		if err != nil {
			uploadNote = "upload failed: " + err.Error()
			logutils.Log.WithError(err).Warn("Post-download upload failed")
		} else {
			uploadNote = "uploaded to " + location
		}
	}

	dm.appendHistory(queue.HistoryEntry{
		URL:        sess.job.URL,
		MediaType:  sess.job.MediaType,
		Title:      title,
		Success:    true,
		Files:      dm.relativeFiles(files),
		UploadNote: uploadNote,
	})

	dm.completion.OnCompleted(sess.mediaID, title, fileNames(files))
	logutils.Log.WithFields(map[string]any{
		"url":   sess.job.URL,
		"title": title,
		"files": len(files),
	}).Info("Download completed")
	return downloader.OutcomeSuccess
}

func (dm *DownloadManager) finishFailed(sess *session, reason string) downloader.Outcome {
	if reason == "" {
		reason = utils.ErrDownloadFailed.Error()
	}
	sess.markFailed(reason)
	ctx := context.Background()

	// Leave the queue before entering the failed list so the pair never
	// exists in both.
	if _, err := dm.store.Remove(sess.job.URL, sess.job.MediaType); err != nil {
		logutils.Log.WithError(err).Warn("Failed to remove job from queue")
	}
	if err := dm.store.AddFailed(sess.job, reason); err != nil {
		logutils.Log.WithError(err).Warn("Failed to record failed download")
	}

	dm.retainOrDropLibraryEntry(ctx, sess)
	dm.cleanupLeftovers(sess)

	dm.appendHistory(queue.HistoryEntry{
		URL:       sess.job.URL,
		MediaType: sess.job.MediaType,
		Title:     sess.Title(),
		Success:   false,
		Error:     reason,
		Files:     dm.relativeFiles(sess.Files()),
	})

	dm.completion.OnFailed(sess.mediaID, sess.Title(), errors.New(reason))
	logutils.Log.WithFields(map[string]any{
		"url":    sess.job.URL,
		"reason": reason,
	}).Error("Download failed on every format attempt")
	return downloader.OutcomeFailed
}

func (dm *DownloadManager) finishCancelled(sess *session) downloader.Outcome {
	sess.markCancelled()
	ctx := context.Background()

	dm.retainOrDropLibraryEntry(ctx, sess)
	dm.cleanupLeftovers(sess)

	dm.appendHistory(queue.HistoryEntry{
		URL:       sess.job.URL,
		MediaType: sess.job.MediaType,
		Title:     sess.Title(),
		Success:   false,
		Error:     downloader.ErrStoppedByUser.Error(),
		Files:     dm.relativeFiles(sess.Files()),
	})

	dm.completion.OnStopped(sess.mediaID, sess.Title())
	logutils.Log.WithField("url", sess.job.URL).Info("Download cancelled")
	return downloader.OutcomeCancelled
}

// retainOrDropLibraryEntry keeps the library row when the session produced
// completed files (earlier playlist entries), otherwise removes it.
func (dm *DownloadManager) retainOrDropLibraryEntry(ctx context.Context, sess *session) {
	if sess.mediaID == 0 {
		return
	}
	files := sess.Files()
	if len(files) == 0 {
		if err := dm.db.RemoveFilesByMediaID(ctx, sess.mediaID); err != nil {
			logutils.Log.WithError(err).Debug("Failed to remove file records")
		}
		if err := dm.db.RemoveMediaItem(ctx, sess.mediaID); err != nil {
			logutils.Log.WithError(err).Warn("Failed to remove unfinished library entry")
		}
		return
	}
	if err := dm.db.AddMediaFiles(ctx, sess.mediaID, dm.relativeFiles(files), false); err != nil {
		logutils.Log.WithError(err).Error("Failed to record completed files")
	}
}

// cleanupLeftovers removes intermediate artifacts for every base name the
// session has touched. Final media files are only reaped from the temp
// directory; the download directory keeps them.
func (dm *DownloadManager) cleanupLeftovers(sess *session) {
	for _, base := range sess.Bases() {
		filemanager.CleanupByPrefix(dm.cfg.Paths.TempDir, base, false)
		filemanager.CleanupByPrefix(dm.cfg.Paths.DownloadDir, base, true)
	}
}

func (dm *DownloadManager) appendHistory(entry queue.HistoryEntry) {
	entry.ID = uuid.NewString()
	if err := dm.store.AppendHistory(entry); err != nil {
		logutils.Log.WithError(err).Warn("Failed to append history entry")
	}
}

// relativeFiles rewrites absolute tool paths relative to the download
// directory for storage and display.
func (dm *DownloadManager) relativeFiles(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if rel, err := filepath.Rel(dm.cfg.Paths.DownloadDir, f); err == nil && !strings.HasPrefix(rel, "..") {
			out = append(out, rel)
			continue
		}
		out = append(out, f)
	}
	return out
}

func fileNames(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, filepath.Base(f))
	}
	return out
}

func totalFileSize(files []string) int64 {
	var total int64
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			total += info.Size()
		}
	}
	return total
}

// attemptFailureSummary condenses one failed attempt into a single line,
// preferring the tool's own ERROR output.
func attemptFailureSummary(exitCode int, tail string, runErr error) string {
	if runErr != nil {
		return runErr.Error()
	}
	lines := strings.Split(tail, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "ERROR") {
			return line
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return fmt.Sprintf("tool exited with status %d", exitCode)
}
