package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/hrsync/internal/domain"
	"gorm.io/gorm"
)

// RunRepository is the import run ledger. Every state change is a compare-and-set on status,
// so a transition the state machine does not allow never reaches the table.
type RunRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRunRepository creates a new RunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RunRepository: repository instance bound to db.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

// Create inserts a run in the detected state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: new run holding its file type's active slot.
// Returns:
//   - error: *domain.RunInProgressError when another non-terminal run exists for the file type.
func (r *RunRepository) Create(ctx context.Context, run *domain.ImportRun) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := activeRun(tx, run.FileType)
		if err != nil {
			return err
		}
		if active != nil {
			return &domain.RunInProgressError{FileType: run.FileType, RunID: active.ID, Status: active.Status}
		}

		if err := tx.Create(run).Error; err != nil {
			// The unique slot index catches a racing insert the read above missed.
			if isDuplicateKey(err) {
				return &domain.RunInProgressError{FileType: run.FileType}
			}
			return fmt.Errorf("failed to create run: %w", err)
		}
		return nil
	})
}

// Get retrieves a run by id.
func (r *RunRepository) Get(ctx context.Context, id string) (*domain.ImportRun, error) {
	return getRun(r.db.WithContext(ctx), id)
}

// Active returns the non-terminal run of fileType, or nil.
func (r *RunRepository) Active(ctx context.Context, fileType domain.FileType) (*domain.ImportRun, error) {
	return activeRun(r.db.WithContext(ctx), fileType)
}

// ListPending returns runs waiting at the approval gate, oldest first.
func (r *RunRepository) ListPending(ctx context.Context) ([]domain.ImportRun, error) {
	var runs []domain.ImportRun
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.RunStatusPendingApproval).
		Order("started_at ASC").
		Find(&runs).Error
	return runs, err
}

// History returns the newest runs, optionally limited to one file type.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileType: file type filter, empty for all.
//   - limit: maximum number of runs, 0 for 50.
// Returns:
//   - []domain.ImportRun: runs ordered by start time descending.
//   - error: non-nil if the query fails.
func (r *RunRepository) History(ctx context.Context, fileType domain.FileType, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("started_at DESC").Order("created_at DESC").Limit(limit)
	if fileType != "" {
		q = q.Where("file_type = ?", fileType)
	}
	var runs []domain.ImportRun
	err := q.Find(&runs).Error
	return runs, err
}

// Update persists non-status fields recorded while the run is still detected
// (source file, checksum, diff outcome). It refuses terminal runs.
func (r *RunRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if _, ok := fields["status"]; ok {
		return errors.New("status changes must go through Transition")
	}
	res := r.db.WithContext(ctx).Model(&domain.ImportRun{}).
		Where("id = ? AND status IN ?", id, domain.NonTerminalStatuses).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update run %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// Transition moves a run to status to, applying fields in the same statement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: run id.
//   - to: target status.
//   - fields: extra columns to set, may be nil.
// Returns:
//   - *domain.ImportRun: the run as stored after the change.
//   - error: *domain.InvalidTransitionError when the edge is not allowed, domain.ErrRunNotFound.
func (r *RunRepository) Transition(ctx context.Context, id string, to domain.RunStatus, fields map[string]interface{}) (*domain.ImportRun, error) {
	var out *domain.ImportRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run, err := transition(tx, id, to, fields, r.now())
		out = run
		return err
	})
	return out, err
}

// Fail ends a run as failed, recording the error verbatim and the counts reached so far.
func (r *RunRepository) Fail(ctx context.Context, id string, summary string, counts domain.RunCounts) (*domain.ImportRun, error) {
	fields := countFields(counts)
	fields["error_summary"] = summary
	return r.Transition(ctx, id, domain.RunStatusFailed, fields)
}

// Completion is everything written when a run ends successfully.
type Completion struct {
	Counts       domain.RunCounts
	WarningCount int
	// Snapshot replaces the file type's accepted structure; nil leaves it untouched.
	Snapshot *domain.FileStructureSnapshot
	// BaselineVersion is the snapshot version the run was classified against, 0 when none.
	BaselineVersion int
}

// Complete marks a run completed and swaps the structure snapshot in one transaction.
// The swap only applies if the snapshot is still at BaselineVersion; otherwise nothing is
// written and domain.ErrSnapshotConflict is returned.
func (r *RunRepository) Complete(ctx context.Context, id string, c Completion) (*domain.ImportRun, error) {
	var out *domain.ImportRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		fields := countFields(c.Counts)
		fields["warning_count"] = c.WarningCount

		run, err := transition(tx, id, domain.RunStatusCompleted, fields, now)
		if err != nil {
			return err
		}

		if c.Snapshot != nil {
			snap := *c.Snapshot
			snap.FileType = run.FileType
			snap.RunID = run.ID
			snap.CapturedAt = now
			if err := replaceSnapshot(tx, &snap, c.BaselineVersion); err != nil {
				return err
			}
		}

		if run.FileVersionID != nil {
			if err := tx.Model(&domain.FileVersion{}).Where("id = ?", *run.FileVersionID).
				Updates(map[string]interface{}{"processed": true, "processed_at": now}).Error; err != nil {
				return fmt.Errorf("failed to mark file version processed: %w", err)
			}
		}
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func transition(tx *gorm.DB, id string, to domain.RunStatus, fields map[string]interface{}, now time.Time) (*domain.ImportRun, error) {
	run, err := getRun(tx, id)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(to) {
		return nil, &domain.InvalidTransitionError{RunID: id, From: run.Status, To: to}
	}

	updates := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	updates["updated_at"] = now
	if to.IsTerminal() {
		updates["active_slot"] = nil
		updates["ended_at"] = now
	}

	res := tx.Model(&domain.ImportRun{}).Where("id = ? AND status = ?", id, run.Status).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to move run %s to %s: %w", id, to, res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone else moved the run between the read and the write.
		current, err := getRun(tx, id)
		if err != nil {
			return nil, err
		}
		return nil, &domain.InvalidTransitionError{RunID: id, From: current.Status, To: to}
	}
	return getRun(tx, id)
}

func replaceSnapshot(tx *gorm.DB, snap *domain.FileStructureSnapshot, baseline int) error {
	var current domain.FileStructureSnapshot
	err := tx.Where("file_type = ?", snap.FileType).Take(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if baseline != 0 {
			return domain.ErrSnapshotConflict
		}
		snap.Version = 1
		if err := tx.Create(snap).Error; err != nil {
			if isDuplicateKey(err) {
				return domain.ErrSnapshotConflict
			}
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if current.Version != baseline {
		return domain.ErrSnapshotConflict
	}
	res := tx.Model(&domain.FileStructureSnapshot{}).
		Where("file_type = ? AND version = ?", snap.FileType, baseline).
		Updates(map[string]interface{}{
			"columns":     snap.Columns,
			"row_count":   snap.RowCount,
			"version":     baseline + 1,
			"run_id":      snap.RunID,
			"source_file": snap.SourceFile,
			"captured_at": snap.CapturedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to replace snapshot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrSnapshotConflict
	}
	return nil
}

func getRun(db *gorm.DB, id string) (*domain.ImportRun, error) {
	var run domain.ImportRun
	if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func activeRun(db *gorm.DB, fileType domain.FileType) (*domain.ImportRun, error) {
	var run domain.ImportRun
	err := db.Where("file_type = ? AND status IN ?", fileType, domain.NonTerminalStatuses).
		Order("started_at DESC").Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func countFields(c domain.RunCounts) map[string]interface{} {
	return map[string]interface{}{
		"processed_count": c.Processed,
		"inserted_count":  c.Inserted,
		"updated_count":   c.Updated,
		"failed_count":    c.Failed,
		"unchanged_count": c.Unchanged,
	}
}
