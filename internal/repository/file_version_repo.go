package repository

import (
	"context"
	"errors"

	"github.com/timmy/hrsync/internal/domain"
	"gorm.io/gorm"
)

// FileVersionRepository registers downloaded files by checksum.
type FileVersionRepository struct {
	db *gorm.DB
}

// NewFileVersionRepository creates a new FileVersionRepository.
func NewFileVersionRepository(db *gorm.DB) *FileVersionRepository {
	return &FileVersionRepository{db: db}
}

// Create inserts a file version.
func (r *FileVersionRepository) Create(ctx context.Context, v *domain.FileVersion) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// Get retrieves a file version by id.
func (r *FileVersionRepository) Get(ctx context.Context, id uint) (*domain.FileVersion, error) {
	var v domain.FileVersion
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// FindProcessed returns the processed version of fileType with checksum, or nil.
func (r *FileVersionRepository) FindProcessed(ctx context.Context, fileType domain.FileType, checksum string) (*domain.FileVersion, error) {
	var v domain.FileVersion
	err := r.db.WithContext(ctx).
		Where("file_type = ? AND checksum = ? AND processed = ?", fileType, checksum, true).
		Order("processed_at DESC").
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByFileType returns the newest versions of fileType.
func (r *FileVersionRepository) ListByFileType(ctx context.Context, fileType domain.FileType, limit int) ([]domain.FileVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	var versions []domain.FileVersion
	err := r.db.WithContext(ctx).
		Where("file_type = ?", fileType).
		Order("downloaded_at DESC").
		Limit(limit).
		Find(&versions).Error
	return versions, err
}
