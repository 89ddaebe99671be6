package repository

import (
	"context"
	"errors"

	"github.com/timmy/hrsync/internal/domain"
	"gorm.io/gorm"
)

// SnapshotRepository reads accepted file structures. Writes happen in RunRepository.Complete.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Get returns the current snapshot of fileType, or nil when the type was never accepted.
func (r *SnapshotRepository) Get(ctx context.Context, fileType domain.FileType) (*domain.FileStructureSnapshot, error) {
	var snap domain.FileStructureSnapshot
	err := r.db.WithContext(ctx).Where("file_type = ?", fileType).Take(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns every current snapshot.
func (r *SnapshotRepository) List(ctx context.Context) ([]domain.FileStructureSnapshot, error) {
	var snaps []domain.FileStructureSnapshot
	err := r.db.WithContext(ctx).Order("file_type").Find(&snaps).Error
	return snaps, err
}
