package outbox

import (
	"context"
	"database/sql"
	"fmt"
)

// MaxAttempts bounds how often a failing event is retried before it is left
// for manual inspection.
const MaxAttempts = 10

type Repository interface {
	FetchPending(ctx context.Context, tx *sql.Tx, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, tx *sql.Tx, id int64) error
	MarkFailed(ctx context.Context, tx *sql.Tx, id int64, reason string) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) FetchPending(ctx context.Context, tx *sql.Tx, limit int) ([]Event, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, topic, payload, attempts, created_at
		FROM outbox
		WHERE published_at IS NULL AND attempts < $2
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit, MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType,
			&e.Topic, &e.Payload, &e.Attempts, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *repository) MarkPublished(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE outbox
		SET published_at = NOW(), last_error = NULL
		WHERE id = $1
	`, id)
	return err
}

func (r *repository) MarkFailed(ctx context.Context, tx *sql.Tx, id int64, reason string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE outbox
		SET last_error = $2, attempts = attempts + 1
		WHERE id = $1
	`, id, reason)
	return err
}
