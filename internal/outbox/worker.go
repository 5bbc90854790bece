package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"onetee-be/internal/logger"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Observer receives one result per handled event; metrics.Metrics satisfies it.
type Observer interface {
	OutboxResult(result string)
}

type Processor struct {
	db        *sql.DB
	repo      Repository
	publisher Publisher
	observer  Observer
	batchSize int
	interval  time.Duration
}

func NewProcessor(db *sql.DB, repo Repository, publisher Publisher, observer Observer, batchSize int, interval time.Duration) *Processor {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Processor{
		db:        db,
		repo:      repo,
		publisher: publisher,
		observer:  observer,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run polls the outbox until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	log := logger.L().With(zap.String("component", "outbox"))
	log.Info("outbox processor started",
		zap.Int("batch_size", p.batchSize),
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox processor stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				log.Error("error processing outbox batch", zap.Error(err))
			}
		}
	}
}

func (p *Processor) observe(result string) {
	if p.observer != nil {
		p.observer.OutboxResult(result)
	}
}

// ProcessBatch publishes one batch of pending events and returns how many
// were published. Rows stay locked for the duration so parallel processors
// never publish the same event concurrently. A failed commit leaves sent
// events pending, so delivery is at-least-once and consumers dedupe on the
// payload's event_id.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	log := logger.L().With(zap.String("component", "outbox"))

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	events, err := p.repo.FetchPending(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	for _, event := range events {
		evLog := log.With(
			zap.Int64("id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("aggregate_id", event.AggregateID),
		)

		if err := p.publisher.Publish(ctx, event.Topic, event.AggregateID, event.Payload); err != nil {
			evLog.Warn("publish failed", zap.Int("attempts", event.Attempts+1), zap.Error(err))
			p.observe("failed")
			if dbErr := p.repo.MarkFailed(ctx, tx, event.ID, err.Error()); dbErr != nil {
				return published, fmt.Errorf("mark event %d failed: %w", event.ID, dbErr)
			}
			continue
		}

		if err := p.repo.MarkPublished(ctx, tx, event.ID); err != nil {
			return published, fmt.Errorf("mark event %d published: %w", event.ID, err)
		}
		p.observe("published")
		published++
		evLog.Debug("outbox event published")
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	log.Info("outbox batch processed",
		zap.Int("fetched", len(events)),
		zap.Int("published", published),
	)
	return published, nil
}
