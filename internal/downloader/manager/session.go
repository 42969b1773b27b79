package manager

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/media-download-server/internal/downloader"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/ytdlp"
	"github.com/NikitaDmitryuk/media-download-server/internal/queue"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

const displayTitleRunes = 80

// session is the ephemeral state of the one job being executed. It lives
// from the moment the worker picks the job up until a terminal outcome and
// is the only place pause and cancel flags are kept.
type session struct {
	job          queue.Item
	attemptCount int
	startedAt    time.Time

	// mediaID is assigned before the session is published to the manager and
	// never changes afterwards.
	mediaID uint

	// lastStoredPercent is only touched by the worker goroutine.
	lastStoredPercent int

	cancelOnce sync.Once
	cancelCh   chan struct{}

	mu            sync.Mutex
	status        downloader.Status
	resumeStatus  downloader.Status
	percent       float64
	title         string
	playlistIndex int
	playlistTotal int
	skipped       int
	attemptIndex  int
	pauseAllowed  bool
	lastError     string
	gate          chan struct{} // non-nil while paused, closed on resume
	files         []string
	bases         []string
}

func newSession(job queue.Item, attemptCount int) *session {
	return &session{
		job:          job,
		attemptCount: attemptCount,
		startedAt:    time.Now(),
		cancelCh:     make(chan struct{}),
		status:       downloader.StatusIdle,
	}
}

// beginAttempt resets the per-attempt state. The attempt index only moves
// forward; percent starts over because a fallback attempt re-downloads.
func (s *session) beginAttempt(index int, attempt ytdlp.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptIndex = index
	s.pauseAllowed = attempt.PauseAllowed
	s.percent = 0
	s.status = downloader.StatusFetchingMetadata
}

// Cancel is one-way: once set it stays set for the session's lifetime. The
// read loop observes it on the next line, or immediately when paused.
func (s *session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

func (s *session) Cancelled() bool {
	select {
	case <-s.cancelCh:
		return true
	default:
		return false
	}
}

// Pause suspends the read loop before the next line is processed. It is
// rejected while the current attempt performs a non-resumable merge.
func (s *session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pauseAllowed {
		return downloader.ErrPauseNotAllowed
	}
	if s.gate != nil {
		return nil
	}
	s.gate = make(chan struct{})
	s.resumeStatus = s.status
	s.status = downloader.StatusPaused
	return nil
}

// Resume releases a paused read loop. Resuming a running session is a no-op.
func (s *session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		return
	}
	close(s.gate)
	s.gate = nil
	s.status = s.resumeStatus
}

// awaitResume blocks while the session is paused. It returns false when the
// session was cancelled, either before the call or while waiting.
func (s *session) awaitResume() bool {
	if s.Cancelled() {
		return false
	}
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate == nil {
		return true
	}
	select {
	case <-gate:
		return true
	case <-s.cancelCh:
		return false
	}
}

// setDownloading records a progress token. Within one attempt the percent
// never goes backwards; a playlist item boundary resets the floor instead.
func (s *session) setDownloading(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != downloader.StatusPaused {
		s.status = downloader.StatusDownloading
	}
	if percent > s.percent {
		s.percent = percent
	}
}

func (s *session) setStage(status downloader.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != downloader.StatusPaused {
		s.status = status
	}
}

func (s *session) setTitle(title string) {
	if runes := []rune(title); len(runes) > displayTitleRunes {
		title = string(runes[:displayTitleRunes])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// setPlaylistItem records the playlist position. Moving to a new item drops
// the percent floor because the tool reports each entry from zero.
func (s *session) setPlaylistItem(index, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index != s.playlistIndex {
		s.percent = 0
	}
	s.playlistIndex = index
	s.playlistTotal = total
}

func (s *session) noteSkip() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
	return s.skipped
}

// addFile records a resolved output path and derives the cleanup base name
// from it.
func (s *session) addFile(path string) {
	base := utils.BaseNameFromToolFile(filepath.Base(path))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f == path {
			return
		}
	}
	s.files = append(s.files, path)
	s.addBaseLocked(base)
}

// addBase records a base name for leftover cleanup.
func (s *session) addBase(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addBaseLocked(base)
}

func (s *session) addBaseLocked(base string) {
	if base == "" {
		return
	}
	for _, b := range s.bases {
		if b == base {
			return
		}
	}
	s.bases = append(s.bases, base)
}

func (s *session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

func (s *session) Bases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.bases))
	copy(out, s.bases)
	return out
}

func (s *session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.title != "" {
		return s.title
	}
	return s.job.URL
}

func (s *session) markCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = downloader.StatusCompleted
}

func (s *session) markCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = downloader.StatusCancelled
}

func (s *session) markFailed(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = downloader.StatusError
	s.lastError = reason
}

func (s *session) snapshot() downloader.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return downloader.Progress{
		URL:           s.job.URL,
		MediaType:     s.job.MediaType,
		Status:        s.status,
		Percent:       s.percent,
		Title:         s.title,
		PlaylistIndex: s.playlistIndex,
		PlaylistTotal: s.playlistTotal,
		SkippedItems:  s.skipped,
		AttemptIndex:  s.attemptIndex + 1,
		AttemptCount:  s.attemptCount,
		PauseAllowed:  s.pauseAllowed,
		Error:         s.lastError,
		StartedAt:     s.startedAt,
	}
}
