package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/database"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/manager"
	"github.com/NikitaDmitryuk/media-download-server/internal/filemanager"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/netcheck"
	"github.com/NikitaDmitryuk/media-download-server/internal/queue"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

const (
	healthProbeTimeout  = 5 * time.Second
	mediaReleaseTimeout = 10 * time.Second
	defaultHistoryPage  = 50
)

type handlers struct {
	cfg      *mdsconfig.Config
	manager  *manager.DownloadManager
	db       database.Database
	netcheck *netcheck.Checker
}

func (h *handlers) health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.netcheck != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		defer cancel()
		if h.netcheck.HasConnectivity(ctx) {
			resp.Connectivity = "ok"
		} else {
			resp.Connectivity = "offline"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) addToQueue(c *gin.Context) {
	var req AddQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.manager.Enqueue(req.URL, req.MediaType)
	switch {
	case errors.Is(err, utils.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid download link"})
	case errors.Is(err, utils.ErrDuplicateDownload):
		c.JSON(http.StatusConflict, gin.H{"error": "download is already queued"})
	case err != nil:
		logutils.Log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Enqueue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue download"})
	default:
		c.JSON(http.StatusCreated, gin.H{
			"url":      req.URL,
			"position": len(h.manager.QueueSnapshot()),
		})
	}
}

func (h *handlers) listQueue(c *gin.Context) {
	items := h.manager.QueueSnapshot()
	entries := make([]QueueEntry, len(items))
	for i, it := range items {
		entries[i] = QueueEntry{
			Position:  i + 1,
			URL:       it.URL,
			MediaType: it.MediaType,
			AddedAt:   it.AddedAt,
		}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) removeFromQueue(c *gin.Context) {
	url := c.Query("url")
	mediaType := c.Query("media_type")
	if url == "" && c.Request.ContentLength > 0 {
		var req RetryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		url, mediaType = req.URL, req.MediaType
	}

	removed, err := h.manager.RemoveQueued(url, mediaType)
	switch {
	case errors.Is(err, downloader.ErrEntryActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		logutils.Log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Queue removal failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove queue entry"})
	case !removed:
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching queue entry"})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Status())
}

func (h *handlers) pause(c *gin.Context) {
	err := h.manager.PauseCurrent()
	switch {
	case errors.Is(err, downloader.ErrNoActiveDownload), errors.Is(err, downloader.ErrPauseNotAllowed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, h.manager.Status())
	}
}

func (h *handlers) resume(c *gin.Context) {
	err := h.manager.ResumeCurrent()
	switch {
	case errors.Is(err, downloader.ErrNoActiveDownload):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, h.manager.Status())
	}
}

func (h *handlers) cancel(c *gin.Context) {
	err := h.manager.CancelCurrent()
	switch {
	case errors.Is(err, downloader.ErrNoActiveDownload):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, h.manager.Status())
	}
}

func (h *handlers) listFailed(c *gin.Context) {
	items := h.manager.FailedSnapshot()
	entries := make([]FailedEntry, len(items))
	for i, it := range items {
		entries[i] = FailedEntry{
			URL:       it.URL,
			MediaType: it.MediaType,
			Reason:    it.Reason,
			AddedAt:   it.AddedAt,
		}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) retryFailed(c *gin.Context) {
	var req RetryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	moved, err := h.manager.RetryFailed(req.URL, req.MediaType)
	if err != nil {
		logutils.Log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Retry failed entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry", "requeued": moved})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": moved})
}

func (h *handlers) history(c *gin.Context) {
	limit := defaultHistoryPage
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.manager.History(limit))
}

func (h *handlers) sessionState(c *gin.Context) {
	queued, failed := h.manager.RecoveryCounts()
	c.JSON(http.StatusOK, SessionStateResponse{
		Pending: h.manager.RecoveryPending(),
		Queued:  queued,
		Failed:  failed,
	})
}

func (h *handlers) sessionAction(c *gin.Context) {
	var req SessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var decision queue.Decision
	switch strings.ToLower(req.Action) {
	case "delete", "discard":
		decision = queue.DecisionDiscard
	case "ignore":
		decision = queue.DecisionIgnore
	case "continue":
		decision = queue.DecisionContinue
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	err := h.manager.ResolveSession(decision)
	switch {
	case errors.Is(err, queue.ErrRecoveryResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		logutils.Log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Recovery decision failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply the decision"})
	default:
		c.JSON(http.StatusOK, gin.H{"resolved": string(decision)})
	}
}

func (h *handlers) listMedia(c *gin.Context) {
	items, err := h.db.GetMediaList(c.Request.Context())
	if err != nil {
		logutils.Log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Media list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list media"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) deleteMedia(c *gin.Context) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}
	mediaID := uint(id64)
	ctx := c.Request.Context()

	exists, err := h.db.MediaExistsID(ctx, mediaID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up media"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}

	if h.manager.ActiveMediaID() == mediaID {
		if cancelErr := h.manager.CancelCurrent(); cancelErr != nil && !errors.Is(cancelErr, downloader.ErrNoActiveDownload) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop the active download"})
			return
		}
		if !h.waitForRelease(ctx, mediaID) {
			c.JSON(http.StatusConflict, gin.H{"error": "could not stop the active download"})
			return
		}
	}

	if err := filemanager.DeleteMediaItem(ctx, h.db, h.cfg.Paths.DownloadDir, mediaID); err != nil {
		logutils.Log.WithError(err).WithFields(map[string]any{
			"media_id":   mediaID,
			"request_id": c.GetString(requestIDKey),
		}).Error("Media deletion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete media"})
		return
	}
	c.Status(http.StatusNoContent)
}

// waitForRelease blocks until the worker finishes the terminal bookkeeping of
// the given library item, so the deletion below cannot race it.
func (h *handlers) waitForRelease(ctx context.Context, mediaID uint) bool {
	deadline := time.Now().Add(mediaReleaseTimeout)
	for time.Now().Before(deadline) {
		if h.manager.ActiveMediaID() != mediaID {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return h.manager.ActiveMediaID() != mediaID
}
