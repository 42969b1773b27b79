package manager

import (
	"context"
	"time"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader"
	"github.com/NikitaDmitryuk/media-download-server/internal/filemanager"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

const bytesPerMB = 1024 * 1024

// run is the single worker loop. It drains the queue head-first, one
// subprocess at a time, and blocks between iterations until woken by a
// store change, a resume signal or the idle delay.
func (dm *DownloadManager) run(ctx context.Context) {
	defer func() {
		dm.running.Store(false)
		close(dm.workerDone)
	}()

	idleDelay := dm.cfg.Worker.IdleDelay
	if idleDelay <= 0 {
		idleDelay = mdsconfig.DefaultIdleDelay
	}

	for {
		if ctx.Err() != nil {
			return
		}

		if dm.RecoveryPending() {
			dm.setIdleNote("waiting for the session recovery decision")
			if !dm.idleWait(ctx, idleDelay) {
				return
			}
			continue
		}

		item, ok := dm.store.DequeueNext()
		if !ok {
			if !dm.idleWait(ctx, idleDelay) {
				return
			}
			continue
		}

		// Preconditions are re-checked before every attempt sequence; the
		// job stays at the queue head until they hold.
		if dm.connCheck != nil && !dm.connCheck.HasConnectivity(ctx) {
			dm.setIdleNote(utils.ErrNoConnectivity.Error())
			if !dm.idleWait(ctx, idleDelay) {
				return
			}
			continue
		}
		if required := dm.cfg.Download.MinFreeMB * bytesPerMB; required > 0 &&
			!filemanager.HasEnoughSpace(dm.cfg.Paths.DownloadDir, required) {
			dm.setIdleNote(utils.ErrInsufficientSpace.Error())
			logutils.Log.WithFields(map[string]any{
				"dir":         dm.cfg.Paths.DownloadDir,
				"required_mb": dm.cfg.Download.MinFreeMB,
			}).Warn("Not enough free disk space, download postponed")
			if !dm.idleWait(ctx, idleDelay) {
				return
			}
			continue
		}
		dm.setIdleNote("")

		outcome := dm.runJob(ctx, item)

		// The failure path removes its own queue entry before recording the
		// failure, so the pair never sits in both lists.
		if outcome != downloader.OutcomeFailed {
			if _, err := dm.store.Remove(item.URL, item.MediaType); err != nil {
				logutils.Log.WithError(err).WithField("url", item.URL).Warn("Failed to remove finished job from queue")
			}
		}
	}
}

// idleWait blocks until new work may be available. It returns false when the
// worker context is done.
func (dm *DownloadManager) idleWait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-dm.wake:
		return true
	case <-timer.C:
		return true
	}
}
