package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/habitloop/LivePulse/internal/app/model"
)

var (
	// ErrUserNotFound signals that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines the data access contract for subject profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByXPDesc(ctx context.Context) ([]model.User, error)
	CountryCodes(ctx context.Context, ids []string) (map[string]string, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a GORM-backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListByXPDesc returns every user ordered by descending XP. Ties keep a
// stable order on id so repeated scans agree with each other.
func (r *userRepository) ListByXPDesc(ctx context.Context) ([]model.User, error) {
	var result []model.User
	if err := r.db.WithContext(ctx).
		Order("xp DESC, id ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *userRepository) CountryCodes(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var rows []model.User
	if err := r.db.WithContext(ctx).
		Select("id", "country_code").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.CountryCode != "" {
			out[row.ID] = row.CountryCode
		}
	}
	return out, nil
}
