package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mdsapi "github.com/NikitaDmitryuk/media-download-server/internal/api"
	"github.com/NikitaDmitryuk/media-download-server/internal/bot"
	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/database"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/manager"
	"github.com/NikitaDmitryuk/media-download-server/internal/downloader/ytdlp"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/netcheck"
	"github.com/NikitaDmitryuk/media-download-server/internal/notifier"
	"github.com/NikitaDmitryuk/media-download-server/internal/process"
	"github.com/NikitaDmitryuk/media-download-server/internal/queue"
	"github.com/NikitaDmitryuk/media-download-server/internal/storage"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	config, err := mdsconfig.NewConfig()
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize configuration")
	}

	logutils.InitLogger(config.LogLevel)
	logutils.Log.WithFields(map[string]any{
		"version":    Version,
		"build_time": BuildTime,
	}).Info("Starting Media Download Server")

	if dirErr := config.EnsureDirs(); dirErr != nil {
		logutils.Log.WithError(dirErr).Fatal("Failed to create data directories")
	}

	db, err := database.NewDatabase(config)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize the database")
	}

	store, err := queue.NewStore(config.Paths.StateDir, config.Queue.HistoryLimit)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to open the download queue")
	}

	recovery := queue.NewRecovery(store)
	if recovery.Pending() {
		queued, failed := recovery.Counts()
		logutils.Log.WithFields(map[string]any{
			"queued": queued,
			"failed": failed,
		}).Warn("Found entries from a previous session, waiting for a recovery decision")
	}

	hasFFmpeg, err := ytdlp.VerifyTools(config.Tools.YtdlpPath, config.Tools.FfmpegPath)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Required external tool is missing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Tools.UpdateOnStart {
		ytdlp.RunUpdate(ctx, config.Tools.YtdlpPath)
	}
	if config.Tools.UpdateInterval > 0 {
		go downloader.StartPeriodicUpdater(ctx, config.Tools.UpdateInterval, ytdlp.NewUpdater(config.Tools.YtdlpPath))
	}

	var connCheck *netcheck.Checker
	if config.Netcheck.Enabled {
		connCheck = netcheck.NewChecker(config)
	}

	uploader, err := storage.NewFromAppConfig(ctx, config)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize S3 storage")
	}

	var completion notifier.CompletionNotifier = notifier.NoopCompletion
	var queueNote notifier.QueueNotifier = notifier.NoopQueue
	if config.Notify.TelegramToken != "" {
		botInstance, botErr := bot.InitBot(config)
		if botErr != nil {
			logutils.Log.WithError(botErr).Error("Bot initialization failed, notifications disabled")
		} else {
			n := bot.NewNotifier(botInstance)
			completion = n
			queueNote = n
		}
	}

	dm := manager.NewDownloadManager(manager.Deps{
		Config:     config,
		Store:      store,
		Recovery:   recovery,
		DB:         db,
		Supervisor: process.NewSupervisor(config.Supervisor.GracefulTimeout, config.Supervisor.ForceTimeout),
		ConnCheck:  connCheck,
		Uploader:   uploader,
		Completion: completion,
		QueueNote:  queueNote,
		HasFFmpeg:  hasFFmpeg,
	})
	dm.StartWorker(ctx)

	queue.NewWatcher(store, config.Queue.PollInterval).Start(ctx)

	apiServer := mdsapi.NewServer(mdsapi.Deps{
		Config:   config,
		Manager:  dm,
		DB:       db,
		Netcheck: connCheck,
	})
	go func() {
		if srvErr := apiServer.Start(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			logutils.Log.WithError(srvErr).Fatal("API server failed")
		}
	}()

	logutils.Log.Info("Media Download Server started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logutils.Log.Info("Received shutdown signal, starting graceful shutdown...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if apiErr := apiServer.Shutdown(shutdownCtx); apiErr != nil {
		logutils.Log.WithError(apiErr).Warn("API server shutdown was not clean")
	}
	if dmErr := dm.Shutdown(shutdownCtx); dmErr != nil {
		logutils.Log.WithError(dmErr).Warn("Worker shutdown was not clean")
	}

	logutils.Log.Info("Media Download Server shutdown complete")
}
