package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/habitloop/LivePulse/internal/app/model"
)

// SessionRepository reads recently-active session rows.
type SessionRepository interface {
	ListActiveSince(ctx context.Context, since time.Time) ([]model.UserSession, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a pgx-backed SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) ListActiveSince(ctx context.Context, since time.Time) ([]model.UserSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, country_code, last_seen
		 FROM user_sessions
		 WHERE last_seen >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.UserSession
	for rows.Next() {
		var (
			row  model.UserSession
			code *string
		)
		if err := rows.Scan(&row.UserID, &code, &row.LastSeen); err != nil {
			return nil, err
		}
		if code != nil {
			row.CountryCode = *code
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
