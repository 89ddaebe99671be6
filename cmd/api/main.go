package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/hrsync/internal/api"
	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/notify"
	"github.com/timmy/hrsync/internal/repository"
	"github.com/timmy/hrsync/internal/service"
	"github.com/timmy/hrsync/internal/source"
	"github.com/timmy/hrsync/internal/source/sftp"
	"github.com/timmy/hrsync/internal/source/staging"
	"github.com/timmy/hrsync/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "hrsync-api",
		File:        cfg.Log.File,
		FileOnly:    cfg.Log.FileOnly,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	src, err := newSource(cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize file source")
	}

	archive, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if s3, ok := archive.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	notifier, err := notify.NewServiceFromConfig(cfg.Notify)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize notifications")
	}

	pipelineCfg := service.PipelineConfigFrom(cfg)
	pipeline := service.NewPipeline(service.PipelineDeps{
		DB:       db,
		Source:   src,
		Archive:  archive,
		Notifier: notifier,
	}, pipelineCfg)
	approvals := service.NewApprovalService(db)

	schedCfg, err := service.SchedulerConfigFrom(cfg.Schedule)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to configure scheduler")
	}
	scheduler := service.NewScheduler(db, pipeline, schedCfg)
	if cfg.Schedule.Enabled {
		go func() {
			if err := scheduler.Run(ctx); err != nil {
				appLogger.WithError(err).Error("Scheduler exited")
			}
		}()
	}

	router := api.SetupRouter(api.Services{
		DB:        db,
		Pipeline:  pipeline,
		Approvals: approvals,
		Scheduler: scheduler,
		Inspector: service.NewSourceInspector(src, pipelineCfg.Patterns),
		Notifier:  notifier,
	}, cfg.Server, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":     cfg.Server.Port,
			"mode":     cfg.Server.Mode,
			"adapter":  src.Name(),
			"archive":  archive != nil,
			"schedule": cfg.Schedule.Enabled,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Runs started over HTTP finish on a detached context, so give them time to close.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	appLogger.Info("Server exited")
}

// newSource picks SFTP when it is enabled, otherwise the local staging directory.
func newSource(cfg *config.Config) (source.Adapter, error) {
	if cfg.SFTP.Enabled {
		return sftp.NewAdapter(cfg.SFTP)
	}
	return staging.NewAdapter(cfg.Staging.Directory), nil
}
