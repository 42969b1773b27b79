package manager

import (
	"context"
	"sync"
	"sync/atomic"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/database"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/ytdlp"
	"github.com/NikitaDmitryuk/media-download-server/internal/netcheck"
	"github.com/NikitaDmitryuk/media-download-server/internal/notifier"
	"github.com/NikitaDmitryuk/media-download-server/internal/process"
	"github.com/NikitaDmitryuk/media-download-server/internal/queue"
	"github.com/NikitaDmitryuk/media-download-server/internal/storage"
)

// DownloadManager owns the worker loop and the active session. It is the
// single entry point for the control surface; nothing else signals the
// subprocess or mutates the queue mid-job.
type DownloadManager struct {
	cfg        *mdsconfig.Config
	store      *queue.Store
	recovery   *queue.Recovery
	db         database.Database
	supervisor *process.Supervisor
	classifier *ytdlp.LineClassifier
	connCheck  *netcheck.Checker
	uploader   storage.Service
	completion notifier.CompletionNotifier
	queueNote  notifier.QueueNotifier
	hasFFmpeg  bool

	running    atomic.Bool
	wake       chan struct{}
	workerDone chan struct{}
	stopWorker context.CancelFunc

	mu       sync.RWMutex
	session  *session
	handle   *process.Handle
	idleNote string
}

// Deps bundles the collaborators handed to NewDownloadManager. Notifiers and
// the uploader may be left nil; noop implementations are substituted.
type Deps struct {
	Config     *mdsconfig.Config
	Store      *queue.Store
	Recovery   *queue.Recovery
	DB         database.Database
	Supervisor *process.Supervisor
	ConnCheck  *netcheck.Checker
	Uploader   storage.Service
	Completion notifier.CompletionNotifier
	QueueNote  notifier.QueueNotifier
	HasFFmpeg  bool
}
