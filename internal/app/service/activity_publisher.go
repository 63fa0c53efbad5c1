package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/habitloop/LivePulse/internal/app/model"
	apprepository "github.com/habitloop/LivePulse/internal/app/repository"
)

// RecordActivityInput captures data required to record an activity event.
type RecordActivityInput struct {
	UserID      string
	Username    string
	EventType   string
	Meta        model.EventMeta
	CountryCode string
	CountryName string
}

// ActivityPublisher persists activity events and publishes the matching
// change notification to JetStream for live consumers.
type ActivityPublisher struct {
	js     nats.JetStreamContext
	repo   apprepository.ActivityRepository
	logger *zap.Logger
}

// NewActivityPublisher creates a publisher over the given stream and store.
func NewActivityPublisher(js nats.JetStreamContext, repo apprepository.ActivityRepository, logger *zap.Logger) *ActivityPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityPublisher{js: js, repo: repo, logger: logger}
}

// Record stores the event and notifies the change feed. Persistence is
// authoritative; a publish failure is logged and left to the next baseline
// backfill rather than failing the caller.
func (p *ActivityPublisher) Record(ctx context.Context, input RecordActivityInput) (*model.ActivityRow, error) {
	row := &model.ActivityRow{
		ID:          uuid.New().String(),
		UserID:      input.UserID,
		Username:    input.Username,
		EventType:   input.EventType,
		Meta:        input.Meta,
		CountryCode: input.CountryCode,
		CountryName: input.CountryName,
		CreatedAt:   time.Now(),
	}

	if err := p.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("store activity: %w", err)
	}

	rowJSON, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode activity row: %w", err)
	}
	data, err := json.Marshal(model.ChangeNotification{
		Table:  model.TableLiveActivity,
		Op:     model.OpInsert,
		NewRow: rowJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("encode change notification: %w", err)
	}

	if _, err := p.js.Publish(model.ChangeSubject(model.TableLiveActivity), data); err != nil {
		p.logger.Warn("change notification publish failed, live views catch up on next baseline",
			zap.String("id", row.ID),
			zap.Error(err))
	}

	return row, nil
}
