package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/domain"
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
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "hrsync-ingest",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	fileType := flag.String("file-type", "", "File type to ingest: employee-roster, termination-reasons or attendance")
	all := flag.Bool("all", false, "Ingest every file type in order")
	force := flag.Bool("force", false, "Process the file even if its checksum was already imported")
	approve := flag.String("approve", "", "Approve the pending run with this id")
	reject := flag.String("reject", "", "Reject the pending run with this id")
	resume := flag.String("resume", "", "Process the approved run with this id")
	actor := flag.String("actor", "", "Operator recorded on approve and reject")
	pending := flag.Bool("pending", false, "List runs waiting for approval")
	history := flag.Bool("history", false, "List recent runs, filtered by -file-type when set")
	limit := flag.Int("limit", 20, "Number of runs listed by -history")
	testSource := flag.Bool("test-source", false, "Check that the HR feed can be listed")
	listFiles := flag.Bool("list-files", false, "List the HR feed and the file each file type would ingest")
	testNotify := flag.Bool("test-notify", false, "Send a test message on every notification channel")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	approvals := service.NewApprovalService(db)

	var ft domain.FileType
	if *fileType != "" {
		if ft, err = domain.ParseFileType(*fileType); err != nil {
			appLogger.WithError(err).Fatal("Invalid -file-type")
		}
	}

	// Ledger commands need no source
	switch {
	case *pending:
		runs, err := approvals.ListPendingRuns(ctx)
		exitOnError(appLogger, err, "Failed to list pending runs")
		printJSON(runs)
		return
	case *history:
		runs, err := approvals.GetRunHistory(ctx, ft, *limit)
		exitOnError(appLogger, err, "Failed to list run history")
		printJSON(runs)
		return
	case *reject != "":
		run, err := approvals.Reject(ctx, *reject, *actor)
		exitOnError(appLogger, err, "Failed to reject run")
		printJSON(run)
		return
	}

	src, err := newSource(cfg)
	exitOnError(appLogger, err, "Failed to initialize source")
	notifier, err := notify.NewServiceFromConfig(cfg.Notify)
	exitOnError(appLogger, err, "Failed to initialize notifications")
	pipelineCfg := service.PipelineConfigFrom(cfg)

	// Checks that start no run
	switch {
	case *testSource:
		check := service.NewSourceInspector(src, pipelineCfg.Patterns).TestConnection(ctx)
		printJSON(check)
		if !check.Reachable {
			os.Exit(1)
		}
		return
	case *listFiles:
		listing, err := service.NewSourceInspector(src, pipelineCfg.Patterns).ListFiles(ctx)
		exitOnError(appLogger, err, "Failed to list source files")
		printJSON(listing)
		return
	case *testNotify:
		results := notifier.SendTest(ctx)
		if len(results) == 0 {
			appLogger.Fatal("No notification channel is enabled")
		}
		printJSON(results)
		for _, r := range results {
			if !r.Delivered {
				os.Exit(1)
			}
		}
		return
	}

	pipeline, err := newPipeline(ctx, cfg, db, src, notifier, pipelineCfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize pipeline")
	}

	switch {
	case *approve != "":
		run, err := approvals.Approve(ctx, *approve, *actor)
		exitOnError(appLogger, err, "Failed to approve run")
		run, err = pipeline.ResumeRun(ctx, run.ID)
		report(appLogger, run, err)
	case *resume != "":
		run, err := pipeline.ResumeRun(ctx, *resume)
		report(appLogger, run, err)
	case *all:
		schedCfg, err := service.SchedulerConfigFrom(cfg.Schedule)
		exitOnError(appLogger, err, "Failed to configure retries")
		scheduler := service.NewScheduler(db, pipeline, schedCfg)
		outcomes := scheduler.SyncAll(ctx, domain.TriggerManual)
		appLogger.WithField("result", service.Summarize(outcomes)).Info("Sync finished")
		failed := false
		for _, o := range outcomes {
			if o.Err != nil {
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
	case ft != "":
		run, err := pipeline.StartRun(ctx, ft, service.StartOptions{Trigger: domain.TriggerManual, Force: *force})
		report(appLogger, run, err)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func newSource(cfg *config.Config) (source.Adapter, error) {
	if !cfg.SFTP.Enabled {
		return staging.NewAdapter(cfg.Staging.Directory), nil
	}
	a, err := sftp.NewAdapter(cfg.SFTP)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newPipeline(ctx context.Context, cfg *config.Config, db *gorm.DB, src source.Adapter, notifier *notify.Service, pcfg service.PipelineConfig) (*service.Pipeline, error) {
	archive, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if s3, ok := archive.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}

	return service.NewPipeline(service.PipelineDeps{
		DB:       db,
		Source:   src,
		Archive:  archive,
		Notifier: notifier,
	}, pcfg), nil
}

// report prints the run and exits non-zero when it failed.
func report(log *logger.Logger, run *domain.ImportRun, err error) {
	if run != nil {
		printJSON(run)
	}
	if err != nil {
		log.WithError(err).Error("Run did not complete")
		logger.Sync()
		os.Exit(1)
	}
	log.WithFields(logger.Fields{
		logger.FieldRunID:    run.ID,
		logger.FieldFileType: run.FileType,
		logger.FieldStatus:   run.Status,
	}).Info("Run finished")
}

func exitOnError(log *logger.Logger, err error, msg string) {
	if err != nil {
		log.WithError(err).Fatal(msg)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
