package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

const (
	queueFileName   = "queue.txt"
	failedFileName  = "failed.txt"
	historyFileName = "history.json"
	oldFileSuffix   = "_old"

	maxReasonLen = 200
)

const (
	MediaTypeVideo = "video"
	MediaTypeAudio = "audio"
)

// Item is one pending download request.
type Item struct {
	URL       string
	MediaType string
	AddedAt   time.Time
}

// FailedItem is a request that exhausted all attempts, with a short reason.
type FailedItem struct {
	Item
	Reason string
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// Store is the durable work queue. The backing files live in stateDir and
// survive restarts; every mutation is serialized through one mutex and
// written atomically (temp file in the same directory, then rename).
type Store struct {
	mu           sync.Mutex
	stateDir     string
	historyLimit int

	queue   []Item
	failed  []FailedItem
	history []HistoryEntry

	// memoryOnly is set after a persistent write failed twice; the store
	// keeps serving from memory for the rest of the process.
	memoryOnly bool

	queueStamp  fileStamp
	failedStamp fileStamp

	listeners []func()
}

func NewStore(stateDir string, historyLimit int) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, utils.WrapError(err, "failed to create state directory", map[string]any{
			"dir": stateDir,
		})
	}

	s := &Store{
		stateDir:     stateDir,
		historyLimit: historyLimit,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) queuePath() string   { return filepath.Join(s.stateDir, queueFileName) }
func (s *Store) failedPath() string  { return filepath.Join(s.stateDir, failedFileName) }
func (s *Store) historyPath() string { return filepath.Join(s.stateDir, historyFileName) }

func oldPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + oldFileSuffix + ext
}

// OnChange registers a callback fired after every durable mutation and after
// an external edit is picked up. Callbacks run outside the store lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), len(s.listeners))
	copy(fns, s.listeners)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Enqueue appends a request to the queue tail. It returns false when an
// entry with the same URL and media type is already queued.
func (s *Store) Enqueue(url, mediaType string) (bool, error) {
	mediaType = normalizeMediaType(mediaType)

	s.mu.Lock()
	if s.findLocked(url, mediaType) >= 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.queue = append(s.queue, Item{URL: url, MediaType: mediaType, AddedAt: time.Now()})
	err := s.persistQueueLocked()
	s.mu.Unlock()

	s.notify()
	return true, err
}

// DequeueNext returns the head of the queue without removing it. The entry
// stays durable until Remove is called after a terminal outcome.
func (s *Store) DequeueNext() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Item{}, false
	}
	return s.queue[0], true
}

// Remove deletes the first entry matching url (and mediaType when given).
// An empty url removes the head. It reports whether an entry was removed.
func (s *Store) Remove(url, mediaType string) (bool, error) {
	mediaType = normalizeMediaType(mediaType)

	s.mu.Lock()
	idx := -1
	if url == "" {
		if len(s.queue) > 0 {
			idx = 0
		}
	} else {
		for i, it := range s.queue {
			if it.URL == url && (mediaType == "" || it.MediaType == mediaType) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
	err := s.persistQueueLocked()
	s.mu.Unlock()

	s.notify()
	return true, err
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Store) Snapshot() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.queue))
	copy(out, s.queue)
	return out
}

// AddFailed records a request that exhausted all attempts. The reason is
// stripped of field separators and capped so the backing file stays parseable.
func (s *Store) AddFailed(item Item, reason string) error {
	s.mu.Lock()
	s.failed = append(s.failed, FailedItem{Item: item, Reason: sanitizeReason(reason)})
	err := s.persistFailedLocked()
	s.mu.Unlock()

	s.notify()
	return err
}

func (s *Store) ListFailed() []FailedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FailedItem, len(s.failed))
	copy(out, s.failed)
	return out
}

// RetryFailedItem moves the first failed entry matching url (and mediaType
// when given) back to the queue tail. It reports whether an entry was moved.
func (s *Store) RetryFailedItem(url, mediaType string) (bool, error) {
	mediaType = normalizeMediaType(mediaType)

	s.mu.Lock()
	idx := -1
	for i, f := range s.failed {
		if f.URL == url && (mediaType == "" || f.MediaType == mediaType) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	moved := s.failed[idx]
	s.failed = append(s.failed[:idx], s.failed[idx+1:]...)
	if s.findLocked(moved.URL, moved.MediaType) < 0 {
		s.queue = append(s.queue, Item{URL: moved.URL, MediaType: moved.MediaType, AddedAt: time.Now()})
	}
	err := s.persistQueueLocked()
	if ferr := s.persistFailedLocked(); err == nil {
		err = ferr
	}
	s.mu.Unlock()

	s.notify()
	return true, err
}

// RetryFailed moves all failed entries back to the queue tail, skipping
// duplicates, and returns how many were moved.
func (s *Store) RetryFailed() (int, error) {
	s.mu.Lock()
	moved := 0
	for _, f := range s.failed {
		if s.findLocked(f.URL, f.MediaType) >= 0 {
			continue
		}
		s.queue = append(s.queue, Item{URL: f.URL, MediaType: f.MediaType, AddedAt: time.Now()})
		moved++
	}
	s.failed = nil
	err := s.persistQueueLocked()
	if ferr := s.persistFailedLocked(); err == nil {
		err = ferr
	}
	s.mu.Unlock()

	s.notify()
	return moved, err
}

// Clear drops all queued and failed entries.
func (s *Store) Clear() error {
	s.mu.Lock()
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

func (s *Store) MemoryOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryOnly
}

// Reload re-reads the backing files when their mtime or size no longer
// matches what the store last wrote. Used by the polling watcher to pick up
// external edits. It reports whether anything was reloaded.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	if s.memoryOnly {
		s.mu.Unlock()
		return false, nil
	}
	current := statStamp(s.queuePath())
	currentFailed := statStamp(s.failedPath())
	if current == s.queueStamp && currentFailed == s.failedStamp {
		s.mu.Unlock()
		return false, nil
	}
	err := s.loadLocked()
	s.mu.Unlock()

	if err != nil {
		return false, err
	}
	s.notify()
	return true, nil
}

func (s *Store) findLocked(url, mediaType string) int {
	for i, it := range s.queue {
		if it.URL == url && it.MediaType == mediaType {
			return i
		}
	}
	return -1
}

// loadLocked reads and, when needed, repairs the backing files.
func (s *Store) loadLocked() error {
	items, repaired, err := readQueueFile(s.queuePath())
	if err != nil {
		return err
	}
	s.queue = items

	failedRecords, failedRepaired, err := readFailedFile(s.failedPath())
	if err != nil {
		return err
	}
	s.failed = failedRecords

	if repaired {
		logutils.Log.WithField("file", s.queuePath()).Warn("Queue file was malformed, rewriting repaired content")
		if perr := s.persistQueueLocked(); perr != nil {
			return perr
		}
	} else {
		s.queueStamp = statStamp(s.queuePath())
	}
	if failedRepaired {
		logutils.Log.WithField("file", s.failedPath()).Warn("Failed-downloads file was malformed, rewriting repaired content")
		if perr := s.persistFailedLocked(); perr != nil {
			return perr
		}
	} else {
		s.failedStamp = statStamp(s.failedPath())
	}

	s.loadHistoryLocked()
	return nil
}

func formatQueueRecords(items []Item) []byte {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s|%s|%d\n", it.URL, it.MediaType, it.AddedAt.Unix())
	}
	return []byte(b.String())
}

func formatFailedRecords(items []FailedItem) []byte {
	var b strings.Builder
	for _, f := range items {
		fmt.Fprintf(&b, "%s|%s|%d|%s\n", f.URL, f.MediaType, f.AddedAt.Unix(), f.Reason)
	}
	return []byte(b.String())
}

func (s *Store) persistQueueLocked() error {
	if err := s.writeLocked(s.queuePath(), formatQueueRecords(s.queue)); err != nil {
		return err
	}
	s.queueStamp = statStamp(s.queuePath())
	return nil
}

func (s *Store) persistFailedLocked() error {
	if err := s.writeLocked(s.failedPath(), formatFailedRecords(s.failed)); err != nil {
		return err
	}
	s.failedStamp = statStamp(s.failedPath())
	return nil
}

// writeLocked writes atomically, retrying once. After a second failure the
// store degrades to memory-only instead of crashing the engine.
func (s *Store) writeLocked(path string, data []byte) error {
	if s.memoryOnly {
		return nil
	}
	err := writeFileAtomic(path, data)
	if err == nil {
		return nil
	}
	logutils.Log.WithError(err).WithField("file", path).Warn("Queue write failed, retrying")
	if err = writeFileAtomic(path, data); err == nil {
		return nil
	}
	s.memoryOnly = true
	logutils.Log.WithError(err).WithField("file", path).Error(
		"Queue write failed twice, continuing with in-memory state only")
	return nil
}

func statStamp(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

func normalizeMediaType(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case MediaTypeAudio:
		return MediaTypeAudio
	case "":
		return ""
	default:
		return MediaTypeVideo
	}
}

func sanitizeReason(reason string) string {
	replacer := strings.NewReplacer("|", " ", "\n", " ", "\r", " ")
	cleaned := strings.Join(strings.Fields(replacer.Replace(reason)), " ")
	if runes := []rune(cleaned); len(runes) > maxReasonLen {
		cleaned = string(runes[:maxReasonLen])
	}
	return cleaned
}

// recordSplitter breaks up lines where several records got glued together
// by whitespace or commas (truncated writes, manual edits).
var recordSplitter = regexp.MustCompile(`[,\s]+`)

// readFileTokens reads a record file and returns one token per record,
// re-splitting glued lines. repaired reports whether the file needs to be
// rewritten in normalized form.
func readFileTokens(path string) (tokens []string, repaired bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, utils.WrapError(err, "failed to read queue file", map[string]any{
			"file": path,
		})
	}

	content := string(data)
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		repaired = true
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		if recordSplitter.MatchString(line) {
			repaired = true
			for _, token := range recordSplitter.Split(line, -1) {
				if token != "" {
					tokens = append(tokens, token)
				}
			}
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens, repaired, nil
}

func readQueueFile(path string) (items []Item, repaired bool, err error) {
	tokens, repaired, err := readFileTokens(path)
	if err != nil {
		return nil, false, err
	}
	for _, token := range tokens {
		item, ok, fixed := parseQueueRecord(token)
		if !ok {
			repaired = true
			continue
		}
		repaired = repaired || fixed
		items = append(items, item)
	}
	return items, repaired, nil
}

func readFailedFile(path string) (items []FailedItem, repaired bool, err error) {
	tokens, repaired, err := readFileTokens(path)
	if err != nil {
		return nil, false, err
	}
	for _, token := range tokens {
		item, ok, fixed := parseFailedRecord(token)
		if !ok {
			repaired = true
			continue
		}
		repaired = repaired || fixed
		items = append(items, item)
	}
	return items, repaired, nil
}

func parseQueueRecord(token string) (Item, bool, bool) {
	parts := strings.Split(token, "|")
	item := Item{MediaType: MediaTypeVideo, AddedAt: time.Now()}
	repaired := false

	switch {
	case len(parts) >= 3:
		item.URL = parts[0]
		item.MediaType = normalizeMediaType(parts[1])
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			repaired = true
		} else {
			item.AddedAt = time.Unix(ts, 0)
		}
	case len(parts) == 2:
		item.URL = parts[0]
		item.MediaType = normalizeMediaType(parts[1])
		repaired = true
	default:
		item.URL = parts[0]
		repaired = true
	}

	if item.URL == "" {
		return Item{}, false, true
	}
	return item, true, repaired
}

func parseFailedRecord(token string) (FailedItem, bool, bool) {
	parts := strings.Split(token, "|")
	if len(parts) < 4 {
		item, ok, _ := parseQueueRecord(token)
		return FailedItem{Item: item}, ok, true
	}

	item := Item{
		URL:       parts[0],
		MediaType: normalizeMediaType(parts[1]),
		AddedAt:   time.Now(),
	}
	repaired := false
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		repaired = true
	} else {
		item.AddedAt = time.Unix(ts, 0)
	}
	if item.URL == "" {
		return FailedItem{}, false, true
	}
	reason := strings.Join(parts[3:], " ")
	return FailedItem{Item: item, Reason: reason}, true, repaired
}
