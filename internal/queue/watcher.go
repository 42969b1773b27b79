package queue

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// Watcher polls the backing files for edits made outside the process, e.g.
// an operator appending URLs to queue.txt by hand. Change detection compares
// mtime and size against the stamp of the store's own last write.
type Watcher struct {
	store    *Store
	interval time.Duration
}

func NewWatcher(store *Store, interval time.Duration) *Watcher {
	return &Watcher{store: store, interval: interval}
}

// Start launches the polling loop. It stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := w.store.Reload()
			if err != nil {
				logutils.Log.WithError(err).Warn("Failed to reload queue files after external change")
				continue
			}
			if changed {
				logutils.Log.Info("Queue files changed on disk, reloaded")
			}
		}
	}
}
