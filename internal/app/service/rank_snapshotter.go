package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/habitloop/LivePulse/internal/app/model"
	apprepository "github.com/habitloop/LivePulse/internal/app/repository"
)

// RankSnapshotter periodically records every user's current rank into the
// history table, giving the rank delta a prior baseline to compare against.
type RankSnapshotter struct {
	logger   *zap.Logger
	users    apprepository.UserRepository
	history  apprepository.RankHistoryRepository
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRankSnapshotter creates a snapshotter recording on the given interval.
func NewRankSnapshotter(logger *zap.Logger, users apprepository.UserRepository, history apprepository.RankHistoryRepository, interval time.Duration) *RankSnapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &RankSnapshotter{
		logger:   logger,
		users:    users,
		history:  history,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic snapshot loop.
func (s *RankSnapshotter) Start() {
	go s.run()
}

// Stop stops the loop. Safe to call more than once.
func (s *RankSnapshotter) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *RankSnapshotter) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.snapshot()
		case <-s.stopChan:
			s.logger.Info("rank snapshotter stopped")
			return
		}
	}
}

func (s *RankSnapshotter) snapshot() {
	ctx := context.Background()
	now := time.Now()

	ordered, err := s.users.ListByXPDesc(ctx)
	if err != nil {
		s.logger.Error("rank snapshot skipped, user scan failed", zap.Error(err))
		return
	}

	recorded := 0
	for i, u := range ordered {
		err := s.history.Record(ctx, &model.RankHistory{
			UserID:     u.ID,
			Rank:       i + 1,
			RecordedAt: now,
		})
		if err != nil {
			s.logger.Warn("rank snapshot write failed",
				zap.String("user_id", u.ID),
				zap.Error(err))
			continue
		}
		recorded++
	}

	if recorded > 0 {
		s.logger.Info("rank snapshot recorded",
			zap.Int("users", recorded),
			zap.Time("recorded_at", now))
	}
}
