package manager

import (
	"context"

	"github.com/NikitaDmitryuk/media-download-server/internal/downloader"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/ytdlp"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/notifier"
	"github.com/NikitaDmitryuk/media-download-server/internal/process"
	"github.com/NikitaDmitryuk/media-download-server/internal/queue"
	"github.com/NikitaDmitryuk/media-download-server/internal/storage"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

func NewDownloadManager(deps Deps) *DownloadManager {
	dm := &DownloadManager{
		cfg:        deps.Config,
		store:      deps.Store,
		recovery:   deps.Recovery,
		db:         deps.DB,
		supervisor: deps.Supervisor,
		classifier: ytdlp.NewLineClassifier(),
		connCheck:  deps.ConnCheck,
		uploader:   deps.Uploader,
		completion: deps.Completion,
		queueNote:  deps.QueueNote,
		hasFFmpeg:  deps.HasFFmpeg,
		wake:       make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}
	if dm.uploader == nil {
		dm.uploader = storage.Disabled
	}
	if dm.completion == nil {
		dm.completion = notifier.NoopCompletion
	}
	if dm.queueNote == nil {
		dm.queueNote = notifier.NoopQueue
	}

	dm.store.OnChange(dm.wakeWorker)
	return dm
}

// StartWorker launches the single background worker. Repeated calls are
// no-ops; exactly one worker runs per manager.
func (dm *DownloadManager) StartWorker(ctx context.Context) {
	if !dm.running.CompareAndSwap(false, true) {
		logutils.Log.Debug("Worker already running, ignoring duplicate start")
		return
	}
	workerCtx, cancel := context.WithCancel(ctx)
	dm.stopWorker = cancel
	go dm.run(workerCtx)
	logutils.Log.Info("Download worker started")
}

// Running reports whether the worker loop is active.
func (dm *DownloadManager) Running() bool {
	return dm.running.Load()
}

// Enqueue validates and appends a request. It returns ErrDuplicateDownload
// when the same (url, mediaType) pair is already queued.
func (dm *DownloadManager) Enqueue(url, mediaType string) error {
	if !utils.IsValidLink(url) {
		return utils.WrapError(utils.ErrInvalidURL, "refusing to queue", map[string]any{"url": url})
	}
	added, err := dm.store.Enqueue(url, mediaType)
	if err != nil {
		return err
	}
	if !added {
		return utils.ErrDuplicateDownload
	}
	dm.queueNote.OnQueued(url, dm.store.Count())
	dm.wakeWorker()
	return nil
}

// CancelCurrent sets the one-way cancel flag on the active session and
// terminates its subprocess tree within the supervisor's bounded budget.
func (dm *DownloadManager) CancelCurrent() error {
	sess, handle := dm.current()
	if sess == nil {
		return downloader.ErrNoActiveDownload
	}
	sess.Cancel()
	if handle != nil {
		if err := dm.supervisor.Terminate(handle); err != nil {
			logutils.Log.WithError(err).Warn("Cancel could not confirm subprocess death, manual cleanup may be required")
		}
	}
	return nil
}

// PauseCurrent suspends the active session before its next output line.
func (dm *DownloadManager) PauseCurrent() error {
	sess, _ := dm.current()
	if sess == nil {
		return downloader.ErrNoActiveDownload
	}
	return sess.Pause()
}

// ResumeCurrent releases a paused session. Resuming a running session is a
// no-op.
func (dm *DownloadManager) ResumeCurrent() error {
	sess, _ := dm.current()
	if sess == nil {
		return downloader.ErrNoActiveDownload
	}
	sess.Resume()
	dm.wakeWorker()
	return nil
}

// Status returns a snapshot of the active session, or an idle snapshot
// carrying the last precheck note when the worker is waiting.
func (dm *DownloadManager) Status() downloader.Progress {
	sess, _ := dm.current()
	if sess != nil {
		return sess.snapshot()
	}
	dm.mu.RLock()
	note := dm.idleNote
	dm.mu.RUnlock()
	return downloader.Progress{Status: downloader.StatusIdle, Error: note}
}

func (dm *DownloadManager) QueueSnapshot() []queue.Item {
	return dm.store.Snapshot()
}

// RemoveQueued deletes a waiting queue entry. An empty url targets the head.
// The entry backing the active session cannot be removed; cancel it instead.
func (dm *DownloadManager) RemoveQueued(url, mediaType string) (bool, error) {
	sess, _ := dm.current()
	if sess != nil {
		job := sess.job
		matchesActive := job.URL == url && (mediaType == "" || job.MediaType == mediaType)
		// The head is the active entry while a session runs.
		if url == "" || matchesActive {
			return false, downloader.ErrEntryActive
		}
	}
	return dm.store.Remove(url, mediaType)
}

// ActiveMediaID returns the library row ID of the running session, or 0.
func (dm *DownloadManager) ActiveMediaID() uint {
	sess, _ := dm.current()
	if sess == nil {
		return 0
	}
	return sess.mediaID
}

func (dm *DownloadManager) FailedSnapshot() []queue.FailedItem {
	return dm.store.ListFailed()
}

// RetryFailed re-queues one failed entry by URL, or every failed entry when
// url is empty. It returns how many entries went back to the queue.
func (dm *DownloadManager) RetryFailed(url, mediaType string) (int, error) {
	if url == "" {
		moved, err := dm.store.RetryFailed()
		dm.wakeWorker()
		return moved, err
	}
	moved, err := dm.store.RetryFailedItem(url, mediaType)
	dm.wakeWorker()
	if moved {
		return 1, err
	}
	return 0, err
}

func (dm *DownloadManager) History(limit int) []queue.HistoryEntry {
	return dm.store.ListHistory(limit)
}

// RecoveryPending reports whether a leftover-session decision gates the worker.
func (dm *DownloadManager) RecoveryPending() bool {
	return dm.recovery != nil && dm.recovery.Pending()
}

// RecoveryCounts returns how many queued and failed entries await the decision.
func (dm *DownloadManager) RecoveryCounts() (queued, failed int) {
	if dm.recovery == nil {
		return 0, 0
	}
	return dm.recovery.Counts()
}

// ResolveSession applies the operator's recovery decision and releases the
// worker.
func (dm *DownloadManager) ResolveSession(decision queue.Decision) error {
	if dm.recovery == nil {
		return queue.ErrRecoveryResolved
	}
	if err := dm.recovery.Resolve(decision); err != nil {
		return err
	}
	dm.wakeWorker()
	return nil
}

// Shutdown cancels the active session, terminates its subprocess tree within
// the supervisor budget and stops the worker. It returns when the worker has
// finished its terminal bookkeeping or ctx expires, whichever comes first.
func (dm *DownloadManager) Shutdown(ctx context.Context) error {
	sess, handle := dm.current()
	if sess != nil {
		sess.Cancel()
		if handle != nil {
			if err := dm.supervisor.Terminate(handle); err != nil {
				logutils.Log.WithError(err).Warn("Shutdown could not confirm subprocess death, manual cleanup may be required")
			}
		}
	}
	if dm.stopWorker != nil {
		dm.stopWorker()
	}
	if !dm.running.Load() {
		return nil
	}
	select {
	case <-dm.workerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (dm *DownloadManager) current() (*session, *process.Handle) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.session, dm.handle
}

func (dm *DownloadManager) setSession(sess *session) {
	dm.mu.Lock()
	dm.session = sess
	dm.idleNote = ""
	dm.mu.Unlock()
}

func (dm *DownloadManager) clearSession() {
	dm.mu.Lock()
	dm.session = nil
	dm.handle = nil
	dm.mu.Unlock()
}

func (dm *DownloadManager) setHandle(handle *process.Handle) {
	dm.mu.Lock()
	dm.handle = handle
	dm.mu.Unlock()
}

func (dm *DownloadManager) setIdleNote(note string) {
	dm.mu.Lock()
	dm.idleNote = note
	dm.mu.Unlock()
}

func (dm *DownloadManager) wakeWorker() {
	select {
	case dm.wake <- struct{}{}:
	default:
	}
}
