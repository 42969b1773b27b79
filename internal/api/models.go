package api

import "time"

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Connectivity string `json:"connectivity,omitempty"`
}

// AddQueueRequest is the body for POST /api/v1/queue.
type AddQueueRequest struct {
	URL       string `json:"url" binding:"required"`
	MediaType string `json:"media_type"`
}

// QueueEntry is one entry in GET /api/v1/queue, oldest first.
type QueueEntry struct {
	Position  int       `json:"position"`
	URL       string    `json:"url"`
	MediaType string    `json:"media_type"`
	AddedAt   time.Time `json:"added_at"`
}

// FailedEntry is one entry in GET /api/v1/failed.
type FailedEntry struct {
	URL       string    `json:"url"`
	MediaType string    `json:"media_type"`
	Reason    string    `json:"reason"`
	AddedAt   time.Time `json:"added_at"`
}

// RetryRequest is the body for POST /api/v1/failed/retry. An empty URL
// retries every failed entry.
type RetryRequest struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// SessionStateResponse is returned by GET /api/v1/session.
type SessionStateResponse struct {
	Pending bool `json:"pending"`
	Queued  int  `json:"queued"`
	Failed  int  `json:"failed"`
}

// SessionActionRequest is the body for POST /api/v1/session/action.
// Accepted actions: delete (drop everything), ignore (set aside), continue.
type SessionActionRequest struct {
	Action string `json:"action" binding:"required"`
}
