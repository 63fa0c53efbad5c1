package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/habitloop/LivePulse/internal/app/model"
)

const (
	fetchBatchSize = 10
	fetchMaxWait   = 2 * time.Second

	// Sizing for the seen-event filter. At-least-once redelivery only needs
	// a short memory, so a generous estimate keeps false positives rare.
	seenEstimate = 1_000_000
	seenFPRate   = 0.001
)

// ChangeConsumer consumes change-feed notifications from NATS JetStream and
// delivers them to the engine. Exact redeliveries of an already-seen
// activity event are dropped by a bloom filter before they reach the
// debounce stage.
type ChangeConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger

	seenMu sync.Mutex
	seen   *bloom.BloomFilter
}

// NewChangeConsumer creates a consumer over the given JetStream context.
func NewChangeConsumer(js nats.JetStreamContext, logger *zap.Logger) *ChangeConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeConsumer{
		js:     js,
		logger: logger,
		seen:   bloom.NewWithEstimates(seenEstimate, seenFPRate),
	}
}

// Subscribe opens one durable pull subscription per table and returns a
// channel of decoded notifications. The channel closes once ctx is
// cancelled and all per-table loops have drained.
func (c *ChangeConsumer) Subscribe(ctx context.Context, tables []string) (<-chan model.ChangeNotification, error) {
	if err := c.ensureStream(); err != nil {
		return nil, err
	}

	subs := make([]*nats.Subscription, 0, len(tables))
	for _, table := range tables {
		durable := model.ChangeConsumerName + "-" + table
		sub, err := c.js.PullSubscribe(model.ChangeSubject(table), durable)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe %s: %w", table, err)
		}
		subs = append(subs, sub)
	}

	out := make(chan model.ChangeNotification, 256)
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go c.consume(ctx, sub, out, &wg)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (c *ChangeConsumer) ensureStream() error {
	_, err := c.js.StreamInfo(model.ChangeStreamName)
	if err == nil {
		return nil
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:     model.ChangeStreamName,
		Subjects: []string{model.ChangeStreamSubjects},
		MaxBytes: model.ChangeStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("create change stream: %w", err)
	}
	return nil
}

func (c *ChangeConsumer) consume(ctx context.Context, sub *nats.Subscription, out chan<- model.ChangeNotification, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(fetchMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if ctx.Err() != nil {
				return
			}
			// Transient fetch failure: the engine keeps its last-known view
			// and we retry on the next pass.
			c.logger.Warn("change feed fetch failed", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var n model.ChangeNotification
			if err := json.Unmarshal(msg.Data, &n); err != nil {
				c.logger.Warn("dropping undecodable change notification", zap.Error(err))
				_ = msg.Ack()
				continue
			}

			if c.isDuplicate(n) {
				_ = msg.Ack()
				continue
			}

			select {
			case out <- n:
				_ = msg.Ack()
			case <-ctx.Done():
				_ = msg.Nak()
				return
			}
		}
	}
}

// isDuplicate filters exact redeliveries of activity inserts by event id.
// Only a probabilistic guard: a false positive drops a fresh event, which
// the feed tolerates, and the (subject, type) debounce still backstops
// false negatives.
func (c *ChangeConsumer) isDuplicate(n model.ChangeNotification) bool {
	if n.Table != model.TableLiveActivity || n.Op != model.OpInsert {
		return false
	}

	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(n.NewRow, &row); err != nil || row.ID == "" {
		return false
	}

	c.seenMu.Lock()
	defer c.seenMu.Unlock()
	return c.seen.TestAndAddString(row.ID)
}
