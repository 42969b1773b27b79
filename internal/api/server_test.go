package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/NikitaDmitryuk/media-download-server/internal/database"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/manager"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/process"
	"github.com/NikitaDmitryuk/media-download-server/internal/queue"
	"github.com/NikitaDmitryuk/media-download-server/internal/testutils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	m.Run()
}

type apiFixture struct {
	router *gin.Engine
	dm     *manager.DownloadManager
	store  *queue.Store
	db     database.Database
}

func newAPIFixture(t *testing.T, apiKey string, seed func(*queue.Store)) *apiFixture {
	t.Helper()

	cfg := testutils.TestConfig(t.TempDir())
	cfg.Server.APIKey = apiKey
	db := testutils.TestDatabase(t, cfg)

	store, err := queue.NewStore(cfg.Paths.StateDir, cfg.Queue.HistoryLimit)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if seed != nil {
		seed(store)
	}

	dm := manager.NewDownloadManager(manager.Deps{
		Config:     cfg,
		Store:      store,
		Recovery:   queue.NewRecovery(store),
		DB:         db,
		Supervisor: process.NewSupervisor(cfg.Supervisor.GracefulTimeout, cfg.Supervisor.ForceTimeout),
		HasFFmpeg:  true,
	})

	router := newRouter(Deps{Config: cfg, Manager: dm, DB: db})
	return &apiFixture{router: router, dm: dm, store: store, db: db}
}

// do issues a request from localhost. Headers come in key, value pairs.
func (f *apiFixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:34567"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Response is not a JSON object: %v (%s)", err, w.Body.String())
	}
	return out
}

func TestQueueLifecycle(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	w := f.do(t, http.MethodPost, "/api/v1/queue", `{"url":"https://example.com/v1","media_type":"video"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /queue status = %d, want 201 (%s)", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/v1/queue", `{"url":"https://example.com/v1","media_type":"video"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate POST /queue status = %d, want 409", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/v1/queue", `{"url":"not a link"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Bad link POST /queue status = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/queue", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /queue status = %d, want 200", w.Code)
	}
	var entries []QueueEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("GET /queue body: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "https://example.com/v1" || entries[0].Position != 1 {
		t.Errorf("GET /queue entries = %+v, want one entry at position 1", entries)
	}

	w = f.do(t, http.MethodDelete, "/api/v1/queue?url=https://example.com/v1", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("DELETE /queue status = %d, want 204 (%s)", w.Code, w.Body.String())
	}
	if got := f.store.Count(); got != 0 {
		t.Errorf("Queue count after delete = %d, want 0", got)
	}

	w = f.do(t, http.MethodDelete, "/api/v1/queue?url=https://example.com/v1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("DELETE /queue on empty queue status = %d, want 404", w.Code)
	}
}

func TestControlsConflictWhenIdle(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	for _, path := range []string{"/api/v1/control/pause", "/api/v1/control/resume", "/api/v1/control/cancel"} {
		w := f.do(t, http.MethodPost, path, "")
		if w.Code != http.StatusConflict {
			t.Errorf("POST %s with no session status = %d, want 409", path, w.Code)
		}
		if reason, _ := decodeBody(t, w)["error"].(string); reason == "" {
			t.Errorf("POST %s conflict body carries no reason: %s", path, w.Body.String())
		}
	}
}

func TestStatusIdle(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	w := f.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "idle" {
		t.Errorf("GET /status body = %s, want status idle", w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	w := f.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("GET /health body = %s, want status ok", w.Body.String())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	f := newAPIFixture(t, "secret-key", nil)

	w := f.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("No key status = %d, want 401", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/health", "", "X-API-Key", "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Wrong key status = %d, want 401", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/health", "", "X-API-Key", "secret-key")
	if w.Code != http.StatusOK {
		t.Errorf("X-API-Key status = %d, want 200", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/health", "", "Authorization", "Bearer secret-key")
	if w.Code != http.StatusOK {
		t.Errorf("Bearer token status = %d, want 200", w.Code)
	}
}

func TestLocalhostOnlyWithoutKey(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", strings.NewReader(""))
	req.RemoteAddr = "203.0.113.7:4444"
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Remote request without key status = %d, want 401", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Localhost request status = %d, want 200", w.Code)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	cfg := testutils.TestConfig(t.TempDir())
	cfg.Server.RateLimit = 2
	db := testutils.TestDatabase(t, cfg)

	store, err := queue.NewStore(cfg.Paths.StateDir, cfg.Queue.HistoryLimit)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	dm := manager.NewDownloadManager(manager.Deps{
		Config:     cfg,
		Store:      store,
		Recovery:   queue.NewRecovery(store),
		DB:         db,
		Supervisor: process.NewSupervisor(cfg.Supervisor.GracefulTimeout, cfg.Supervisor.ForceTimeout),
		HasFFmpeg:  true,
	})
	f := &apiFixture{router: newRouter(Deps{Config: cfg, Manager: dm, DB: db}), dm: dm, store: store, db: db}

	for i := 0; i < 2; i++ {
		if w := f.do(t, http.MethodGet, "/api/v1/status", ""); w.Code != http.StatusOK {
			t.Fatalf("Request %d status = %d, want 200", i+1, w.Code)
		}
	}
	w := f.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Request over budget status = %d, want 429", w.Code)
	}
	if reason, _ := decodeBody(t, w)["error"].(string); reason == "" {
		t.Error("Rate limited response is missing an error message")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	w := f.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Response is missing a generated X-Request-ID")
	}

	w = f.do(t, http.MethodGet, "/api/v1/health", "", "X-Request-ID", "fixed-id-1")
	if got := w.Header().Get("X-Request-ID"); got != "fixed-id-1" {
		t.Errorf("X-Request-ID = %q, want the caller's fixed-id-1", got)
	}
}

func TestSessionRecoveryFlow(t *testing.T) {
	f := newAPIFixture(t, "", func(s *queue.Store) {
		if _, err := s.Enqueue("https://example.com/leftover", "video"); err != nil {
			t.Fatalf("Seeding queue failed: %v", err)
		}
	})

	w := f.do(t, http.MethodGet, "/api/v1/session", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /session status = %d, want 200", w.Code)
	}
	var state SessionStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("GET /session body: %v", err)
	}
	if !state.Pending || state.Queued != 1 {
		t.Errorf("Session state = %+v, want pending with 1 queued", state)
	}

	w = f.do(t, http.MethodPost, "/api/v1/session/action", `{"action":"bogus"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown action status = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/v1/session/action", `{"action":"continue"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /session/action status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if f.dm.RecoveryPending() {
		t.Error("Recovery still pending after the decision")
	}

	w = f.do(t, http.MethodPost, "/api/v1/session/action", `{"action":"continue"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Second decision status = %d, want 409", w.Code)
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	w := f.do(t, http.MethodGet, "/api/v1/history?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Invalid limit status = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Errorf("GET /history status = %d, want 200", w.Code)
	}
}

func TestMediaEndpoints(t *testing.T) {
	f := newAPIFixture(t, "", nil)

	w := f.do(t, http.MethodGet, "/api/v1/media", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /media status = %d, want 200", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/api/v1/media/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("DELETE unknown media status = %d, want 404", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/api/v1/media/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("DELETE invalid media id status = %d, want 400", w.Code)
	}
}

func TestFailedRetryEndpoint(t *testing.T) {
	f := newAPIFixture(t, "", nil)
	if err := f.store.AddFailed(queue.Item{URL: "https://example.com/bad2", MediaType: "video"}, "timeout"); err != nil {
		t.Fatalf("Seeding failed list: %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/v1/failed", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /failed status = %d, want 200", w.Code)
	}
	var entries []FailedEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("GET /failed body: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "timeout" {
		t.Fatalf("GET /failed entries = %+v, want the seeded timeout entry", entries)
	}

	w = f.do(t, http.MethodPost, "/api/v1/failed/retry", `{"url":"https://example.com/bad2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /failed/retry status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["requeued"] != float64(1) {
		t.Errorf("Retry response = %s, want requeued 1", w.Body.String())
	}
	if got := len(f.dm.FailedSnapshot()); got != 0 {
		t.Errorf("Failed list length after retry = %d, want 0", got)
	}
}
