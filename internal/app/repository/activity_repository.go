package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// ActivityRepository defines the data access contract for activity events.
type ActivityRepository interface {
	Create(ctx context.Context, row *model.ActivityRow) error
	ListRecent(ctx context.Context, limit int) ([]model.ActivityRow, error)
	ListBySubjectSince(ctx context.Context, subjectID string, since time.Time, types []string) ([]model.ActivityRow, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository returns a GORM-backed ActivityRepository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, row *model.ActivityRow) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *activityRepository) ListRecent(ctx context.Context, limit int) ([]model.ActivityRow, error) {
	if limit <= 0 {
		limit = 20
	}

	var result []model.ActivityRow
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *activityRepository) ListBySubjectSince(ctx context.Context, subjectID string, since time.Time, types []string) ([]model.ActivityRow, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", subjectID, since)
	if len(types) > 0 {
		q = q.Where("event_type IN ?", types)
	}

	var result []model.ActivityRow
	if err := q.Order("created_at ASC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}
