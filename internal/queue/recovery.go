package queue

import (
	"errors"
	"os"
	"sync"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// Decision is the operator's choice for entries recovered from a previous run.
type Decision string

const (
	// DecisionDiscard drops all recovered queue and failed entries.
	DecisionDiscard Decision = "discard"
	// DecisionIgnore moves the recovered entries into inert side files and
	// starts with an empty queue.
	DecisionIgnore Decision = "ignore"
	// DecisionContinue keeps the queue and re-queues failed entries at the tail.
	DecisionContinue Decision = "continue"
)

var (
	ErrRecoveryResolved = errors.New("session recovery already resolved")
	ErrUnknownDecision  = errors.New("unknown recovery decision")
)

// Recovery gates the worker after a restart that left queued or failed
// entries behind. Exactly one decision is applied per process lifetime.
type Recovery struct {
	store *Store

	mu       sync.Mutex
	pending  bool
	resolved bool
}

// NewRecovery merges leftover side files from earlier sessions back into the
// active queue, then reports whether an operator decision is needed.
func NewRecovery(store *Store) *Recovery {
	if merged, err := store.mergeOldFiles(); err != nil {
		logutils.Log.WithError(err).Warn("Failed to merge leftover session files")
	} else if merged > 0 {
		logutils.Log.Infof("Merged %d entries left over from a previous session", merged)
	}

	r := &Recovery{store: store}
	r.pending = store.Count() > 0 || len(store.ListFailed()) > 0
	r.resolved = !r.pending
	return r
}

// Pending reports whether recovered entries are waiting for a decision.
func (r *Recovery) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Counts returns how many queued and failed entries await the decision.
func (r *Recovery) Counts() (queued, failed int) {
	return r.store.Count(), len(r.store.ListFailed())
}

// Resolve applies the decision. Subsequent calls return ErrRecoveryResolved.
func (r *Recovery) Resolve(decision Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return ErrRecoveryResolved
	}

	switch decision {
	case DecisionDiscard:
		if err := r.store.Clear(); err != nil {
			return err
		}
	case DecisionIgnore:
		if err := r.store.setAside(); err != nil {
			return err
		}
	case DecisionContinue:
		moved, err := r.store.RetryFailed()
		if err != nil {
			return err
		}
		if moved > 0 {
			logutils.Log.Infof("Re-queued %d previously failed downloads", moved)
		}
	default:
		return ErrUnknownDecision
	}

	logutils.Log.Infof("Session recovery resolved with decision '%s'", decision)
	r.resolved = true
	r.pending = false
	return nil
}

// mergeOldFiles folds *_old side files (left by the Ignore decision of an
// earlier or concurrent instance) back into the active files.
func (s *Store) mergeOldFiles() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := 0

	oldQueue := oldPath(s.queuePath())
	items, _, err := readQueueFile(oldQueue)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if s.findLocked(it.URL, it.MediaType) < 0 {
			s.queue = append(s.queue, it)
			merged++
		}
	}

	oldFailed := oldPath(s.failedPath())
	failedItems, _, err := readFailedFile(oldFailed)
	if err != nil {
		return merged, err
	}
	for _, f := range failedItems {
		s.failed = append(s.failed, f)
		merged++
	}

	for _, path := range []string{oldQueue, oldFailed} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logutils.Log.WithError(err).WithField("file", path).Warn("Failed to remove merged session file")
		}
	}

	if merged == 0 {
		return 0, nil
	}
	if err := s.persistQueueLocked(); err != nil {
		return merged, err
	}
	return merged, s.persistFailedLocked()
}

// setAside moves the current queue and failed entries into *_old side files
// and clears the active state.
func (s *Store) setAside() error {
	s.mu.Lock()
	if len(s.queue) > 0 {
		if err := writeFileAtomic(oldPath(s.queuePath()), formatQueueRecords(s.queue)); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if len(s.failed) > 0 {
		if err := writeFileAtomic(oldPath(s.failedPath()), formatFailedRecords(s.failed)); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.queue = nil
	s.failed = nil
	err := s.persistQueueLocked()
	if ferr := s.persistFailedLocked(); err == nil {
		err = ferr
	}
	s.mu.Unlock()

	s.notify()
	return err
}
