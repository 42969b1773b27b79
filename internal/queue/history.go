package queue

import (
	"encoding/json"
	"os"
	"time"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// HistoryEntry records one finished download, successful or not.
type HistoryEntry struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	MediaType  string    `json:"media_type"`
	Title      string    `json:"title,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Files      []string  `json:"files,omitempty"`
	UploadNote string    `json:"upload_note,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// AppendHistory prepends an entry (newest first) and trims the log to the
// configured limit.
func (s *Store) AppendHistory(entry HistoryEntry) error {
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}

	s.mu.Lock()
	s.history = append([]HistoryEntry{entry}, s.history...)
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		s.history = s.history[:s.historyLimit]
	}
	err := s.persistHistoryLocked()
	s.mu.Unlock()
	return err
}

// ListHistory returns up to limit entries, newest first. A non-positive
// limit returns everything retained.
func (s *Store) ListHistory(limit int) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HistoryEntry, n)
	copy(out, s.history[:n])
	return out
}

func (s *Store) persistHistoryLocked() error {
	data, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return s.writeLocked(s.historyPath(), data)
}

func (s *Store) loadHistoryLocked() {
	data, err := os.ReadFile(s.historyPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logutils.Log.WithError(err).Warn("Failed to read history file, starting empty")
		}
		s.history = nil
		return
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logutils.Log.WithError(err).Warn("History file is not valid JSON, starting empty")
		s.history = nil
		return
	}
	if s.historyLimit > 0 && len(entries) > s.historyLimit {
		entries = entries[:s.historyLimit]
	}
	s.history = entries
}
