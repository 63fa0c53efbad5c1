package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// RankHistoryRepository reads and writes stored rank snapshots.
type RankHistoryRepository interface {
	// LatestSince returns the most recent snapshot for userID recorded on or
	// after since, or nil when none exists.
	LatestSince(ctx context.Context, userID string, since time.Time) (*model.RankHistory, error)
	Record(ctx context.Context, snapshot *model.RankHistory) error
}

type rankHistoryRepository struct {
	db *gorm.DB
}

// NewRankHistoryRepository returns a GORM-backed RankHistoryRepository.
func NewRankHistoryRepository(db *gorm.DB) RankHistoryRepository {
	return &rankHistoryRepository{db: db}
}

func (r *rankHistoryRepository) LatestSince(ctx context.Context, userID string, since time.Time) (*model.RankHistory, error) {
	var snapshot model.RankHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND recorded_at >= ?", userID, since).
		Order("recorded_at DESC").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *rankHistoryRepository) Record(ctx context.Context, snapshot *model.RankHistory) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}
