package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/decoder"
	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/metrics"
	"github.com/timmy/hrsync/internal/notify"
	"github.com/timmy/hrsync/internal/repository"
	"github.com/timmy/hrsync/internal/schema"
	"github.com/timmy/hrsync/internal/source"
	"github.com/timmy/hrsync/internal/storage"
	"github.com/timmy/hrsync/internal/transform"
)

// PipelineConfig holds the ingestion policy.
type PipelineConfig struct {
	// Patterns are the lower-case name fragments that identify each file type's export.
	Patterns           map[domain.FileType][]string
	Tolerance          float64
	RequireBaseline    bool
	SkipProcessed      bool
	YearPivot          int
	YearPivotOverrides map[domain.FileType]int
	Writer             WriterConfig
	ArchivePrefix      string
}

// PipelineConfigFrom reads the ingest and transform sections of cfg.
func PipelineConfigFrom(cfg *config.Config) PipelineConfig {
	patterns := make(map[domain.FileType][]string, len(cfg.Ingest.FilePatterns))
	for ft, p := range cfg.Ingest.FilePatterns {
		patterns[domain.FileType(ft)] = p
	}
	overrides := make(map[domain.FileType]int, len(cfg.Transform.YearPivotOverrides))
	for ft, pivot := range cfg.Transform.YearPivotOverrides {
		overrides[domain.FileType(ft)] = pivot
	}
	return PipelineConfig{
		Patterns:           patterns,
		Tolerance:          cfg.Ingest.RowDropTolerance,
		RequireBaseline:    cfg.Ingest.RequireBaseline,
		SkipProcessed:      cfg.Ingest.SkipProcessed,
		YearPivot:          cfg.Transform.YearPivot,
		YearPivotOverrides: overrides,
		Writer: WriterConfig{
			BatchSize:   cfg.Ingest.BatchSize,
			Concurrency: cfg.Ingest.WriteConcurrency,
		},
		ArchivePrefix: cfg.Storage.Prefix,
	}
}

func (c PipelineConfig) pivotFor(ft domain.FileType) int {
	if p, ok := c.YearPivotOverrides[ft]; ok && p > 0 {
		return p
	}
	return c.YearPivot
}

// PipelineDeps are the collaborators of a Pipeline. Archive and Notifier are optional.
type PipelineDeps struct {
	DB       *gorm.DB
	Source   source.Adapter
	Archive  storage.ObjectStorage
	Notifier *notify.Service
}

// Pipeline moves one file type from the remote source through structure gating into the store.
type Pipeline struct {
	db        *gorm.DB
	runs      *repository.RunRepository
	snapshots *repository.SnapshotRepository
	versions  *repository.FileVersionRepository
	issues    *repository.IssueRepository
	source    source.Adapter
	archive   storage.ObjectStorage
	notifier  *notify.Service
	cfg       PipelineConfig
	now       func() time.Time
	newID     func() string
}

// NewPipeline creates a new Pipeline.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		db:        deps.DB,
		runs:      repository.NewRunRepository(deps.DB),
		snapshots: repository.NewSnapshotRepository(deps.DB),
		versions:  repository.NewFileVersionRepository(deps.DB),
		issues:    repository.NewIssueRepository(deps.DB),
		source:    deps.Source,
		archive:   deps.Archive,
		notifier:  deps.Notifier,
		cfg:       cfg,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// StartOptions tune a single run.
type StartOptions struct {
	Trigger domain.RunTrigger
	// Force processes a file even if the same checksum was already imported.
	Force bool
}

// Checksum is the hex SHA256 of a file's bytes.
func Checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// StartRun creates a run for fileType and drives it until it completes, fails or stops at
// the approval gate.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileType: which export to ingest.
//   - opts: trigger and force flag.
// Returns:
//   - *domain.ImportRun: the run as stored when StartRun returned.
//   - error: *domain.RunInProgressError when the file type is busy; *RunFailedError, together
//     with the failed run, when the run was recorded as failed.
func (p *Pipeline) StartRun(ctx context.Context, fileType domain.FileType, opts StartOptions) (*domain.ImportRun, error) {
	patterns := p.cfg.Patterns[fileType]
	if !fileType.Valid() || len(patterns) == 0 {
		return nil, &UnknownFileTypeError{FileType: fileType}
	}
	trigger := opts.Trigger
	if trigger == "" {
		trigger = domain.TriggerManual
	}

	run := domain.NewImportRun(p.newID(), fileType, trigger, p.now())
	if err := p.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	ctx = logger.WithRun(ctx, run.ID, string(fileType))
	logger.FromContext(ctx).WithFields(logger.Fields{
		"trigger": trigger,
		"force":   opts.Force,
		"adapter": p.source.Name(),
	}).Info("Run started")

	file, raw, err := p.fetch(ctx, patterns)
	if err != nil {
		return p.fail(ctx, run, err)
	}
	ctx = logger.SetSource(ctx, file.Name)

	run.SourceFile = file.Name
	run.Checksum = Checksum(raw)
	if err := p.runs.Update(ctx, run.ID, map[string]interface{}{
		"source_file": run.SourceFile,
		"checksum":    run.Checksum,
	}); err != nil {
		return p.fail(ctx, run, err)
	}

	if p.cfg.SkipProcessed && !opts.Force {
		prev, err := p.versions.FindProcessed(ctx, fileType, run.Checksum)
		if err != nil {
			return p.fail(ctx, run, err)
		}
		if prev != nil {
			logger.FromContext(ctx).WithField("file_version_id", prev.ID).Info("File already processed, skipping")
			done, err := p.runs.Complete(ctx, run.ID, repository.Completion{})
			if err != nil {
				return p.fail(ctx, run, err)
			}
			metrics.RunFinished(string(fileType), string(done.Status), p.now().Sub(run.StartedAt))
			return done, nil
		}
	}

	if err := p.registerVersion(ctx, run, file, raw); err != nil {
		return p.fail(ctx, run, err)
	}

	table, err := decoder.Decode(raw, filepath.Ext(file.Name))
	if err != nil {
		return p.fail(ctx, run, err)
	}

	result, baseline, err := p.classify(ctx, run, table)
	if err != nil {
		return p.fail(ctx, run, err)
	}

	if result.Breaking() {
		gated, err := p.advance(ctx, run, domain.RunStatusPendingApproval)
		if err != nil {
			return gated, err
		}
		logger.FromContext(ctx).WithFields(logger.Fields{
			"added":   result.Added,
			"removed": result.Removed,
			"reasons": result.Reasons,
		}).Warn("Structure change needs approval")
		metrics.RunFinished(string(fileType), string(gated.Status), 0)
		p.notifier.ApprovalRequired(ctx, gated)
		return gated, nil
	}

	if accepted, err := p.advance(ctx, run, domain.RunStatusAutoAccepted); err != nil {
		return accepted, err
	}
	return p.process(ctx, run, table, baseline)
}

// ResumeRun processes an approved run. The file is re-read from the archive when one was
// kept, otherwise from the source, and must still have the checksum seen at detection.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: id of a run in the approved state.
// Returns:
//   - *domain.ImportRun: the run after processing.
//   - error: *domain.InvalidTransitionError when the run is not approved; *RunFailedError
//     when the run was recorded as failed.
func (p *Pipeline) ResumeRun(ctx context.Context, runID string) (*domain.ImportRun, error) {
	run, err := p.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunStatusApproved {
		return nil, &domain.InvalidTransitionError{RunID: runID, From: run.Status, To: domain.RunStatusProcessing}
	}
	ctx = logger.WithRun(ctx, run.ID, string(run.FileType))
	ctx = logger.SetSource(ctx, run.SourceFile)
	logger.FromContext(ctx).WithField(logger.FieldActor, run.ApprovedBy).Info("Resuming approved run")

	raw, err := p.reload(ctx, run)
	if err != nil {
		return p.fail(ctx, run, err)
	}
	if sum := Checksum(raw); run.Checksum != "" && sum != run.Checksum {
		return p.fail(ctx, run, &ChecksumMismatchError{Approved: run.Checksum, Current: sum})
	}

	table, err := decoder.Decode(raw, filepath.Ext(run.SourceFile))
	if err != nil {
		return p.fail(ctx, run, err)
	}
	return p.process(ctx, run, table, run.BaselineVersion)
}

func (p *Pipeline) fetch(ctx context.Context, patterns []string) (source.FileInfo, []byte, error) {
	files, err := p.source.ListFiles(ctx)
	if err != nil {
		return source.FileInfo{}, nil, err
	}
	file, err := source.MatchFile(files, patterns)
	if err != nil {
		return source.FileInfo{}, nil, err
	}
	raw, err := p.source.Download(ctx, file.Name)
	if err != nil {
		return source.FileInfo{}, nil, err
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldSource: file.Name,
		logger.FieldSize:   len(raw),
	}).Info("Downloaded file")
	return file, raw, nil
}

// registerVersion records the download and archives its bytes when storage is configured.
// A failed upload is logged; resume then falls back to the source.
func (p *Pipeline) registerVersion(ctx context.Context, run *domain.ImportRun, file source.FileInfo, raw []byte) error {
	now := p.now()
	v := &domain.FileVersion{
		FileType:      run.FileType,
		OriginalName:  file.Name,
		VersionedName: domain.VersionedFileName(file.Name, now),
		Checksum:      run.Checksum,
		Size:          int64(len(raw)),
		RunID:         run.ID,
		DownloadedAt:  now,
	}

	if p.archive != nil {
		key := storage.ArchiveKey(p.cfg.ArchivePrefix, string(run.FileType), v.VersionedName)
		if err := p.archive.Upload(ctx, key, bytes.NewReader(raw), v.Size, storage.ContentType(file.Name)); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to archive file version")
		} else {
			v.StorageKey = key
		}
	}

	if err := p.versions.Create(ctx, v); err != nil {
		if v.StorageKey != "" {
			// Without a version row nothing references the object.
			if derr := p.archive.Delete(context.WithoutCancel(ctx), v.StorageKey); derr != nil {
				logger.FromContext(ctx).WithError(derr).WithField("key", v.StorageKey).Warn("Failed to remove unregistered archive object")
			}
		}
		return fmt.Errorf("failed to register file version: %w", err)
	}
	if err := p.runs.Update(ctx, run.ID, map[string]interface{}{"file_version_id": v.ID}); err != nil {
		return err
	}
	run.FileVersionID = &v.ID
	return nil
}

// reload returns the bytes of the run's file version, from the archive when the object is
// still there and from the source otherwise.
func (p *Pipeline) reload(ctx context.Context, run *domain.ImportRun) ([]byte, error) {
	if raw, ok := p.readArchived(ctx, run); ok {
		return raw, nil
	}
	return p.source.Download(ctx, run.SourceFile)
}

func (p *Pipeline) readArchived(ctx context.Context, run *domain.ImportRun) ([]byte, bool) {
	if p.archive == nil || run.FileVersionID == nil {
		return nil, false
	}
	log := logger.FromContext(ctx)
	v, err := p.versions.Get(ctx, *run.FileVersionID)
	if err != nil || v.StorageKey == "" {
		return nil, false
	}
	log = log.WithField("key", v.StorageKey)

	ok, err := p.archive.Exists(ctx, v.StorageKey)
	switch {
	case err != nil:
		log.WithError(err).Warn("Archive unreachable, reading from source")
		return nil, false
	case !ok:
		log.Warn("Archived file missing, reading from source")
		return nil, false
	}
	rc, err := p.archive.Download(ctx, v.StorageKey)
	if err != nil {
		log.WithError(err).Warn("Archived file unavailable, reading from source")
		return nil, false
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		log.WithError(err).Warn("Archived file unreadable, reading from source")
		return nil, false
	}
	return raw, true
}

// classify diffs the decoded structure against the accepted snapshot and records the outcome
// on the run. It returns the snapshot version the run was classified against.
func (p *Pipeline) classify(ctx context.Context, run *domain.ImportRun, table *decoder.Table) (schema.Result, int, error) {
	snap, err := p.snapshots.Get(ctx, run.FileType)
	if err != nil {
		return schema.Result{}, 0, fmt.Errorf("failed to read snapshot: %w", err)
	}

	baseline := 0
	var baselineRows *int
	if snap != nil {
		baseline = snap.Version
		rows := snap.RowCount
		baselineRows = &rows
	}

	current := schema.ComputeFingerprint(table.Columns, table.RowCount())
	res := schema.Diff(schema.FromSnapshot(snap), current, schema.Options{
		Tolerance:       p.cfg.Tolerance,
		RequireBaseline: p.cfg.RequireBaseline,
	})

	if err := p.runs.Update(ctx, run.ID, map[string]interface{}{
		"classification":     res.Classification,
		"added_columns":      domain.StringArray(res.Added),
		"removed_columns":    domain.StringArray(res.Removed),
		"row_count":          table.RowCount(),
		"dropped_rows":       table.DroppedRows,
		"baseline_row_count": baselineRows,
		"baseline_version":   baseline,
		"change_summary":     strings.Join(res.Reasons, "; "),
	}); err != nil {
		return schema.Result{}, 0, err
	}

	metrics.Classified(string(run.FileType), string(res.Classification))
	logger.FromContext(ctx).WithFields(logger.Fields{
		"classification": res.Classification,
		"format":         table.Format,
		"rows":           table.RowCount(),
		"dropped_rows":   table.DroppedRows,
		"first_run":      res.FirstRun,
	}).Info("Structure classified")
	return res, baseline, nil
}

type processOutcome struct {
	counts   domain.RunCounts
	warnings int
	issues   []domain.ImportError
	diffs    []domain.RecordDiff
}

// process transforms and writes the table, then completes the run and swaps the snapshot.
func (p *Pipeline) process(ctx context.Context, run *domain.ImportRun, table *decoder.Table, baseline int) (*domain.ImportRun, error) {
	run, err := p.advance(ctx, run, domain.RunStatusProcessing)
	if err != nil {
		return run, err
	}
	start := time.Now()

	out := p.transformAndWrite(ctx, run, table)
	p.saveIssues(ctx, run.ID, out)

	done, err := p.runs.Complete(ctx, run.ID, repository.Completion{
		Counts:       out.counts,
		WarningCount: out.warnings,
		Snapshot: &domain.FileStructureSnapshot{
			Columns:    domain.StringArray(slices.Clone(table.Columns)),
			RowCount:   table.RowCount(),
			SourceFile: run.SourceFile,
		},
		BaselineVersion: baseline,
	})
	if err != nil {
		return p.failWithCounts(ctx, run, err, out.counts)
	}

	logger.With(logger.Fields{
		"processed": out.counts.Processed,
		"inserted":  out.counts.Inserted,
		"updated":   out.counts.Updated,
		"unchanged": out.counts.Unchanged,
		"failed":    out.counts.Failed,
		"warnings":  out.warnings,
	}).WithDuration(time.Since(start).Milliseconds()).WithStatus(string(done.Status)).Info(ctx, "Run completed")

	metrics.RunFinished(string(done.FileType), string(done.Status), p.now().Sub(done.StartedAt))
	p.notifier.RunCompleted(ctx, done)
	return done, nil
}

func (p *Pipeline) transformAndWrite(ctx context.Context, run *domain.ImportRun, table *decoder.Table) processOutcome {
	opts := transform.Options{YearPivot: p.cfg.pivotFor(run.FileType)}
	switch run.FileType {
	case domain.FileTypeEmployeeRoster:
		return writeRecords(ctx, p, run, transform.Transform(table, transform.EmployeeSpec, opts))
	case domain.FileTypeTerminationReasons:
		return writeRecords(ctx, p, run, transform.Transform(table, transform.TerminationSpec, opts))
	default:
		spec := transform.AttendanceSpec(table, opts.YearPivot)
		return writeRecords(ctx, p, run, transform.Transform(table, spec, opts))
	}
}

func writeRecords[T domain.Record](ctx context.Context, p *Pipeline, run *domain.ImportRun, res *transform.Result[T]) processOutcome {
	logger.FromContext(ctx).WithFields(logger.Fields{
		"columns":    res.Columns,
		"unresolved": res.Unresolved,
	}).Debug("Columns resolved")
	w := ApplyRecords(ctx, repository.NewRecordStore[T](p.db), run.ID, string(run.FileType), res.Records, p.cfg.Writer)

	out := processOutcome{
		counts: domain.RunCounts{
			Processed: res.Processed(),
			Inserted:  w.Inserted,
			Updated:   w.Updated,
			Unchanged: w.Unchanged,
			Failed:    len(res.Failures) + w.Failed,
		},
		diffs: w.Diffs,
	}

	for _, field := range slices.Sorted(maps.Keys(res.Unresolved)) {
		msg := "required column not found"
		if s := res.Unresolved[field]; s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		out.issues = append(out.issues, domain.ImportError{
			RunID: run.ID, Severity: domain.SeverityWarning, ErrorType: domain.IssueUnresolved, Field: field, Message: msg,
		})
	}
	out.issues = append(out.issues, toImportErrors(run.ID, domain.SeverityWarning, res.Warnings)...)
	out.issues = append(out.issues, toImportErrors(run.ID, domain.SeverityError, res.Failures)...)
	if w.Duplicates > 0 {
		out.issues = append(out.issues, domain.ImportError{
			RunID: run.ID, Severity: domain.SeverityWarning, ErrorType: domain.IssueDuplicate,
			Message: fmt.Sprintf("%d records repeated a natural key; the last occurrence was kept", w.Duplicates),
		})
	}
	out.issues = append(out.issues, w.Errors...)

	for _, issue := range out.issues {
		if issue.Severity == domain.SeverityWarning {
			out.warnings++
		}
	}
	return out
}

func toImportErrors(runID string, severity domain.IssueSeverity, issues []transform.Issue) []domain.ImportError {
	out := make([]domain.ImportError, 0, len(issues))
	for _, i := range issues {
		out = append(out, domain.ImportError{
			RunID:     runID,
			RowNumber: i.Row,
			Severity:  severity,
			ErrorType: i.Type,
			Field:     i.Field,
			Message:   i.Message,
			RawData:   domain.RawRow(i.Raw),
		})
	}
	return out
}

func (p *Pipeline) saveIssues(ctx context.Context, runID string, out processOutcome) {
	log := logger.FromContext(ctx)
	if err := p.issues.SaveErrors(ctx, out.issues); err != nil {
		log.WithError(err).Warn("Failed to save import errors")
	}
	if err := p.issues.SaveDiffs(ctx, out.diffs); err != nil {
		log.WithError(err).Warn("Failed to save record diffs")
	}
}

// advance moves run to status to. When another caller already moved the run the error is
// returned as is; any other failure (a dead connection, an expired deadline) fails the run so
// its file type is not left blocked by a run nobody is driving.
func (p *Pipeline) advance(ctx context.Context, run *domain.ImportRun, to domain.RunStatus) (*domain.ImportRun, error) {
	moved, err := p.runs.Transition(ctx, run.ID, to, nil)
	switch {
	case err == nil:
		return moved, nil
	case domain.IsInvalidTransition(err), errors.Is(err, domain.ErrRunNotFound):
		return nil, err
	default:
		return p.fail(ctx, run, fmt.Errorf("move run to %s: %w", to, err))
	}
}

func (p *Pipeline) fail(ctx context.Context, run *domain.ImportRun, cause error) (*domain.ImportRun, error) {
	return p.failWithCounts(ctx, run, cause, domain.RunCounts{})
}

// failWithCounts records cause verbatim and keeps the counts reached so far. Ledger writes
// ignore cancellation of ctx so a cancelled run is still closed.
func (p *Pipeline) failWithCounts(ctx context.Context, run *domain.ImportRun, cause error, counts domain.RunCounts) (*domain.ImportRun, error) {
	logger.FromContext(ctx).WithError(cause).Error("Run failed")

	bg := context.WithoutCancel(ctx)
	failed, err := p.runs.Fail(bg, run.ID, cause.Error(), counts)
	if err != nil {
		return nil, fmt.Errorf("failed to record failure of run %s (%v): %w", run.ID, cause, err)
	}
	metrics.RunFinished(string(failed.FileType), string(failed.Status), p.now().Sub(failed.StartedAt))
	p.notifier.RunFailed(bg, failed)
	return failed, &RunFailedError{RunID: run.ID, Err: cause}
}
