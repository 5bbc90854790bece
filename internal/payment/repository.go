package payment

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the webhook delivery log used for at-most-once processing.
type Repository interface {
	// RecordDelivery stores a delivery and returns its id. fresh is false when
	// the event was already processed successfully.
	RecordDelivery(ctx context.Context, d Delivery) (id int64, fresh bool, err error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) RecordDelivery(ctx context.Context, d Delivery) (int64, bool, error) {
	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		order_ref,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET attempts = payment_webhooks.attempts + 1, process_error = NULL
	WHERE payment_webhooks.processed_at IS NULL
	RETURNING id;
	`

	var orderRef sql.NullString
	if d.OrderRef != "" {
		orderRef = sql.NullString{String: d.OrderRef, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		d.Provider,
		d.EventID,
		d.EventType,
		orderRef,
		string(d.Payload),
	).Scan(&id)

	if err != nil {
		// Conflict on a processed row updates nothing and returns nothing.
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return id, true, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id int64) error {
	const q = `
	UPDATE payment_webhooks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *repository) MarkFailed(ctx context.Context, id int64, reason string) error {
	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, id, reason)
	return err
}
