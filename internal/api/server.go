package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/database"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/manager"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/netcheck"
)

// Deps are the collaborators the control surface exposes.
type Deps struct {
	Config   *mdsconfig.Config
	Manager  *manager.DownloadManager
	DB       database.Database
	Netcheck *netcheck.Checker
}

// Server runs the REST API.
type Server struct {
	srv *http.Server
}

// NewServer builds the API server. When no API key is configured, only
// requests from localhost (or the Docker host) are accepted.
func NewServer(deps Deps) *Server {
	srv := &http.Server{
		Addr:         deps.Config.Server.Addr,
		Handler:      newRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{srv: srv}
}

func newRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLog())

	h := &handlers{
		cfg:      deps.Config,
		manager:  deps.Manager,
		db:       deps.DB,
		netcheck: deps.Netcheck,
	}

	guards := []gin.HandlerFunc{requireAPIKey(deps.Config.Server.APIKey)}
	if perMinute := deps.Config.Server.RateLimit; perMinute > 0 {
		guards = append([]gin.HandlerFunc{rateLimit(newTokenBucketLimiter(perMinute))}, guards...)
	}

	v1 := router.Group("/api/v1", guards...)
	{
		v1.GET("/health", h.health)

		v1.POST("/queue", h.addToQueue)
		v1.GET("/queue", h.listQueue)
		v1.DELETE("/queue", h.removeFromQueue)

		v1.GET("/status", h.status)
		v1.POST("/control/pause", h.pause)
		v1.POST("/control/resume", h.resume)
		v1.POST("/control/cancel", h.cancel)

		v1.GET("/failed", h.listFailed)
		v1.POST("/failed/retry", h.retryFailed)
		v1.GET("/history", h.history)

		v1.GET("/session", h.sessionState)
		v1.POST("/session/action", h.sessionAction)

		v1.GET("/media", h.listMedia)
		v1.DELETE("/media/:id", h.deleteMedia)
	}

	return router
}

// Start listens and serves. Blocks until Shutdown is called.
func (s *Server) Start() error {
	logutils.Log.WithField("addr", s.srv.Addr).Info("API server starting")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
