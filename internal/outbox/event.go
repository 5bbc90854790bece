package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event is one row of the outbox table: a message that must reach Kafka
// at least once after the transaction that wrote it commits.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Payload       json.RawMessage
	Attempts      int
	LastError     *string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// Execer is satisfied by *sql.Tx and *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert writes an event inside the caller's transaction. The payload is
// marshalled here so callers hand over domain structs.
func Insert(ctx context.Context, tx Execer, aggregateType, aggregateID, eventType, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, aggregateType, aggregateID, eventType, topic, string(data))
	return err
}
