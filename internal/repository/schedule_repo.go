package repository

import (
	"context"
	"errors"

	"github.com/timmy/hrsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const scheduleID = 1

// ScheduleRepository persists the single sync schedule row.
type ScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Get returns the schedule, or nil when none was saved yet.
func (r *ScheduleRepository) Get(ctx context.Context) (*domain.SyncSchedule, error) {
	var s domain.SyncSchedule
	err := r.db.WithContext(ctx).Where("id = ?", scheduleID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save creates or replaces the schedule.
func (r *ScheduleRepository) Save(ctx context.Context, s *domain.SyncSchedule) error {
	s.ID = scheduleID
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(s).Error
}
