package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/metrics"
	"github.com/timmy/hrsync/internal/repository"
)

// ApprovalService is the operator side of the approval gate and the run ledger.
type ApprovalService struct {
	runs     *repository.RunRepository
	issues   *repository.IssueRepository
	versions *repository.FileVersionRepository
	now      func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(db *gorm.DB) *ApprovalService {
	return &ApprovalService{
		runs:     repository.NewRunRepository(db),
		issues:   repository.NewIssueRepository(db),
		versions: repository.NewFileVersionRepository(db),
		now:      time.Now,
	}
}

// ListPendingRuns returns the runs waiting for a decision, oldest first.
func (s *ApprovalService) ListPendingRuns(ctx context.Context) ([]domain.ImportRun, error) {
	runs, err := s.runs.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetPendingRuns(len(runs))
	return runs, nil
}

// Approve moves a pending run to approved and records who approved it. Processing is a
// separate step (Pipeline.ResumeRun).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: run waiting at the gate.
//   - actor: operator id, required.
// Returns:
//   - *domain.ImportRun: the approved run.
//   - error: *domain.InvalidTransitionError when the run is not pending approval.
func (s *ApprovalService) Approve(ctx context.Context, runID, actor string) (*domain.ImportRun, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, domain.ErrActorRequired
	}
	run, err := s.runs.Transition(ctx, runID, domain.RunStatusApproved, map[string]interface{}{
		"approved_by": actor,
		"approved_at": s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx, run, actor).Info("Run approved")
	return run, nil
}

// Reject ends a pending run without writing any record.
func (s *ApprovalService) Reject(ctx context.Context, runID, actor string) (*domain.ImportRun, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, domain.ErrActorRequired
	}
	run, err := s.runs.Transition(ctx, runID, domain.RunStatusRejected, map[string]interface{}{
		"rejected_by": actor,
		"rejected_at": s.now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.RunFinished(string(run.FileType), string(run.Status), s.now().Sub(run.StartedAt))
	s.log(ctx, run, actor).Info("Run rejected")
	return run, nil
}

// GetRunHistory returns the newest runs, optionally for one file type.
func (s *ApprovalService) GetRunHistory(ctx context.Context, fileType domain.FileType, limit int) ([]domain.ImportRun, error) {
	return s.runs.History(ctx, fileType, limit)
}

// GetRun returns one run.
func (s *ApprovalService) GetRun(ctx context.Context, runID string) (*domain.ImportRun, error) {
	return s.runs.Get(ctx, runID)
}

// ListRunErrors returns the row issues recorded for a run.
func (s *ApprovalService) ListRunErrors(ctx context.Context, runID string, limit int) ([]domain.ImportError, error) {
	if _, err := s.runs.Get(ctx, runID); err != nil {
		return nil, err
	}
	return s.issues.ListErrors(ctx, runID, limit)
}

// ListFileVersions returns the downloads registered for a file type.
func (s *ApprovalService) ListFileVersions(ctx context.Context, fileType domain.FileType, limit int) ([]domain.FileVersion, error) {
	return s.versions.ListByFileType(ctx, fileType, limit)
}

func (s *ApprovalService) log(ctx context.Context, run *domain.ImportRun, actor string) *logger.Logger {
	return logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldRunID:    run.ID,
		logger.FieldFileType: run.FileType,
		logger.FieldActor:    actor,
	})
}
