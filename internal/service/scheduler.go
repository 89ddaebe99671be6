package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/repository"
	"github.com/timmy/hrsync/internal/source"
)

// RunStarter starts one run of a file type.
type RunStarter interface {
	StartRun(ctx context.Context, fileType domain.FileType, opts StartOptions) (*domain.ImportRun, error)
}

// SchedulerConfig controls the sync loop.
type SchedulerConfig struct {
	PollInterval time.Duration
	// MaxRetry bounds how long a file type keeps retrying after connection errors. Zero disables retries.
	MaxRetry     time.Duration
	InitialRetry time.Duration
	Location     *time.Location
	// Default is saved the first time the schedule is read.
	Default domain.SyncSchedule
}

// SchedulerConfigFrom reads the schedule section of cfg.
func SchedulerConfigFrom(cfg config.ScheduleConfig) (SchedulerConfig, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return SchedulerConfig{}, fmt.Errorf("invalid schedule timezone: %w", err)
		}
		loc = l
	}
	return SchedulerConfig{
		PollInterval: cfg.PollInterval,
		MaxRetry:     cfg.MaxRetry,
		Location:     loc,
		Default: domain.SyncSchedule{
			Frequency: domain.SyncFrequency(cfg.Frequency),
			DayOfWeek: cfg.DayOfWeek,
			RunTime:   cfg.RunTime,
		},
	}, nil
}

// SyncOutcome is the result of one file type within a full sync.
type SyncOutcome struct {
	FileType domain.FileType
	Run      *domain.ImportRun
	Err      error
	Attempts int
}

// Scheduler starts a full sync whenever the persisted schedule is due.
type Scheduler struct {
	starter   RunStarter
	schedules *repository.ScheduleRepository
	cfg       SchedulerConfig
	now       func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(db *gorm.DB, starter RunStarter, cfg SchedulerConfig) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.InitialRetry <= 0 {
		cfg.InitialRetry = 5 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		starter:   starter,
		schedules: repository.NewScheduleRepository(db),
		cfg:       cfg,
		now:       time.Now,
	}
}

// GetSchedule returns the persisted schedule, saving the configured default on first use.
func (s *Scheduler) GetSchedule(ctx context.Context) (*domain.SyncSchedule, error) {
	sched, err := s.schedules.Get(ctx)
	if err != nil {
		return nil, err
	}
	if sched != nil {
		return sched, nil
	}

	def := s.cfg.Default
	def.Normalize()
	def.NextRunAt = def.ComputeNextRun(s.now().In(s.cfg.Location))
	def.UpdatedBy = "system"
	if err := s.schedules.Save(ctx, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// UpdateSchedule replaces frequency, day and time, and recomputes the next run.
func (s *Scheduler) UpdateSchedule(ctx context.Context, update domain.SyncSchedule, actor string) (*domain.SyncSchedule, error) {
	sched, err := s.GetSchedule(ctx)
	if err != nil {
		return nil, err
	}
	sched.Frequency = update.Frequency
	sched.DayOfWeek = update.DayOfWeek
	sched.RunTime = update.RunTime
	sched.Normalize()
	sched.NextRunAt = sched.ComputeNextRun(s.now().In(s.cfg.Location))
	sched.UpdatedBy = actor
	if err := s.schedules.Save(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Run polls the schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = logger.SetComponent(ctx, "scheduler")
	log := logger.FromContext(ctx)
	log.WithField("poll_interval", s.cfg.PollInterval.String()).Info("Scheduler started")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil {
			log.WithError(err).Error("Scheduled sync failed")
		}
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs a full sync if the schedule is due and moves it to its next run.
// It reports whether a sync ran.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	sched, err := s.GetSchedule(ctx)
	if err != nil {
		return false, err
	}
	now := s.now().In(s.cfg.Location)
	if sched.NextRunAt == nil || now.Before(*sched.NextRunAt) {
		return false, nil
	}

	outcomes := s.SyncAll(ctx, domain.TriggerSchedule)

	finished := s.now().In(s.cfg.Location)
	sched.LastRunAt = &finished
	sched.LastResult = Summarize(outcomes)
	sched.NextRunAt = sched.ComputeNextRun(finished)
	if err := s.schedules.Save(context.WithoutCancel(ctx), sched); err != nil {
		return true, fmt.Errorf("failed to save schedule: %w", err)
	}
	return true, nil
}

// SyncAll runs every file type in order. A failure of one file type does not stop the others.
func (s *Scheduler) SyncAll(ctx context.Context, trigger domain.RunTrigger) []SyncOutcome {
	outcomes := make([]SyncOutcome, 0, len(domain.AllFileTypes))
	for _, ft := range domain.AllFileTypes {
		if ctx.Err() != nil {
			outcomes = append(outcomes, SyncOutcome{FileType: ft, Err: ctx.Err()})
			continue
		}
		outcomes = append(outcomes, s.startWithRetry(ctx, ft, trigger))
	}
	return outcomes
}

// startWithRetry retries a file type only when its source could not be reached.
// Each attempt is its own run in the ledger.
func (s *Scheduler) startWithRetry(ctx context.Context, ft domain.FileType, trigger domain.RunTrigger) SyncOutcome {
	out := SyncOutcome{FileType: ft}
	log := logger.FromContext(ctx).WithField(logger.FieldFileType, ft)

	var b backoff.BackOff = &backoff.StopBackOff{}
	if s.cfg.MaxRetry > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = s.cfg.InitialRetry
		exp.MaxElapsedTime = s.cfg.MaxRetry
		b = exp
	}

	op := func() error {
		out.Attempts++
		run, err := s.starter.StartRun(ctx, ft, StartOptions{Trigger: trigger})
		out.Run = run
		if err == nil || !source.IsConnectionError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("Source unreachable, retrying")
	}

	out.Err = backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	return out
}

// Summarize renders outcomes as "file-type: status" pairs.
func Summarize(outcomes []SyncOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		switch {
		case o.Run != nil:
			parts = append(parts, fmt.Sprintf("%s: %s", o.FileType, o.Run.Status))
		case o.Err != nil:
			parts = append(parts, fmt.Sprintf("%s: error (%v)", o.FileType, o.Err))
		default:
			parts = append(parts, fmt.Sprintf("%s: skipped", o.FileType))
		}
	}
	return strings.Join(parts, "; ")
}
