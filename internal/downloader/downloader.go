package downloader

import (
	"context"
	"time"
)

// Updater keeps the external tool current.
type Updater interface {
	RunUpdate(ctx context.Context)
}

// Status of a download session.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusFetchingMetadata Status = "fetching_metadata"
	StatusDownloading      Status = "downloading"
	StatusConverting       Status = "converting"
	StatusMerging          Status = "merging"
	StatusPostProcessing   Status = "post_processing"
	StatusPaused           Status = "paused"
	StatusCancelled        Status = "cancelled"
	StatusError            Status = "error"
	StatusCompleted        Status = "completed"
)

// Terminal reports whether no further transitions happen from this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	}
	return false
}

// Progress is a point-in-time snapshot of the active session, safe to hand
// to the API and notifiers.
type Progress struct {
	URL           string    `json:"url,omitempty"`
	MediaType     string    `json:"media_type,omitempty"`
	Status        Status    `json:"status"`
	Percent       float64   `json:"percent"`
	Title         string    `json:"title,omitempty"`
	PlaylistIndex int       `json:"playlist_index,omitempty"`
	PlaylistTotal int       `json:"playlist_total,omitempty"`
	SkippedItems  int       `json:"skipped_items,omitempty"`
	AttemptIndex  int       `json:"attempt_index"`
	AttemptCount  int       `json:"attempt_count"`
	PauseAllowed  bool      `json:"pause_allowed"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
}

// Outcome is the terminal result of running one job through the controller.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}
