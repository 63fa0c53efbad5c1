package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// RollupRepository reads precomputed per-country daily counters.
type RollupRepository interface {
	ListByDay(ctx context.Context, day string) ([]model.CountryRollup, error)
}

type rollupRepository struct {
	pool *pgxpool.Pool
}

// NewRollupRepository returns a pgx-backed RollupRepository. The refresh
// path reads raw rows in bulk, so it goes straight through the pool.
func NewRollupRepository(pool *pgxpool.Pool) RollupRepository {
	return &rollupRepository{pool: pool}
}

func (r *rollupRepository) ListByDay(ctx context.Context, day string) ([]model.CountryRollup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT country_code, day, checkins, levelups, active_users
		 FROM country_activity
		 WHERE day = $1`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.CountryRollup
	for rows.Next() {
		var row model.CountryRollup
		if err := rows.Scan(&row.CountryCode, &row.Day, &row.Checkins, &row.LevelUps, &row.ActiveUsers); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
