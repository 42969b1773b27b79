package testutils

import (
	"fmt"
	"sync"
)

// RecordingNotifier captures notification calls for assertions. It
// implements both notifier.CompletionNotifier and notifier.QueueNotifier.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *RecordingNotifier) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *RecordingNotifier) OnCompleted(mediaID uint, title string, files []string) {
	r.record("completed:%d:%s:%d", mediaID, title, len(files))
}

func (r *RecordingNotifier) OnFailed(mediaID uint, title string, err error) {
	r.record("failed:%d:%s:%v", mediaID, title, err)
}

func (r *RecordingNotifier) OnStopped(mediaID uint, title string) {
	r.record("stopped:%d:%s", mediaID, title)
}

func (r *RecordingNotifier) OnQueued(title string, position int) {
	r.record("queued:%s:%d", title, position)
}

func (r *RecordingNotifier) OnStarted(title string) {
	r.record("started:%s", title)
}

func (r *RecordingNotifier) OnFallback(title string, attempt, total int) {
	r.record("fallback:%s:%d/%d", title, attempt, total)
}

// Events returns a copy of everything recorded so far.
func (r *RecordingNotifier) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events with the given prefix were recorded.
func (r *RecordingNotifier) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
