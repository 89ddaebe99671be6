package repository

import (
	"context"
	"fmt"

	"github.com/timmy/hrsync/internal/domain"
	"gorm.io/gorm"
)

const issueChunkSize = 100

// IssueRepository stores per-row import errors and per-record diffs of a run.
type IssueRepository struct {
	db *gorm.DB
}

// NewIssueRepository creates a new IssueRepository.
func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// SaveErrors appends row issues in chunks.
func (r *IssueRepository) SaveErrors(ctx context.Context, issues []domain.ImportError) error {
	if len(issues) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(issues, issueChunkSize).Error; err != nil {
		return fmt.Errorf("failed to save %d import errors: %w", len(issues), err)
	}
	return nil
}

// SaveDiffs appends record diffs in chunks.
func (r *IssueRepository) SaveDiffs(ctx context.Context, diffs []domain.RecordDiff) error {
	if len(diffs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(diffs, issueChunkSize).Error; err != nil {
		return fmt.Errorf("failed to save %d record diffs: %w", len(diffs), err)
	}
	return nil
}

// ListErrors returns the issues of a run in row order.
func (r *IssueRepository) ListErrors(ctx context.Context, runID string, limit int) ([]domain.ImportError, error) {
	if limit <= 0 {
		limit = 500
	}
	var issues []domain.ImportError
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("row_number ASC").Order("id ASC").
		Limit(limit).
		Find(&issues).Error
	return issues, err
}

// ListDiffs returns the record diffs of a run.
func (r *IssueRepository) ListDiffs(ctx context.Context, runID string, limit int) ([]domain.RecordDiff, error) {
	if limit <= 0 {
		limit = 500
	}
	var diffs []domain.RecordDiff
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Limit(limit).
		Find(&diffs).Error
	return diffs, err
}
