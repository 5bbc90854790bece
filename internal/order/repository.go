package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"onetee-be/internal/logger"
	"onetee-be/internal/outbox"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// CreateOrder prices entries against the catalog and stores the order,
	// its items and an order.created event in one transaction. It returns
	// the product ids that were skipped.
	CreateOrder(ctx context.Context, owner uuid.NullUUID, entries []CartEntry) (*Order, []uuid.UUID, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)

	// ClaimCheckout marks a pending order as having a checkout session open
	// until the given time. It fails when another unexpired claim exists.
	ClaimCheckout(ctx context.Context, id uuid.UUID, until, now time.Time) (bool, error)
	ReleaseCheckout(ctx context.Context, id uuid.UUID) error
	AttachCheckoutSession(ctx context.Context, id uuid.UUID, provider, sessionID string) (bool, error)

	TransitionStatus(ctx context.Context, t Transition) (TransitionResult, Status, error)
	FindOrderIDByPaymentID(ctx context.Context, paymentID string) (uuid.UUID, error)
}

type repository struct {
	db    *sql.DB
	topic string
}

func NewRepository(db *sql.DB, topic string) Repository {
	return &repository{db: db, topic: topic}
}

func (r *repository) CreateOrder(ctx context.Context, owner uuid.NullUUID, entries []CartEntry) (*Order, []uuid.UUID, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	products, err := lookupProducts(ctx, tx, entries)
	if err != nil {
		log.Error("failed to look up products", zap.Error(err))
		return nil, nil, err
	}

	cart, err := PriceCart(entries, products)
	if err != nil {
		return nil, nil, err
	}

	o := &Order{
		UserID:     owner,
		Status:     StatusPending,
		TotalCents: cart.TotalCents,
		Currency:   cart.Currency,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO shop_orders (user_id, status, total_cents, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.Status, o.TotalCents, o.Currency).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return nil, nil, err
	}

	for pos, item := range cart.Items {
		item.OrderID = o.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO shop_order_items (
				order_id, product_id, variant_id, position,
				quantity, unit_price_cents, total_cents
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`,
			item.OrderID,
			item.ProductID,
			item.VariantID,
			pos,
			item.Quantity,
			item.UnitPriceCents,
			item.TotalCents,
		).Scan(&item.ID)
		if err != nil {
			log.Error("failed to insert order item", zap.Int("position", pos), zap.Error(err))
			return nil, nil, err
		}
		o.Items = append(o.Items, item)
	}

	if err = outbox.Insert(ctx, tx, aggregateOrder, o.ID.String(), EventOrderCreated, r.topic, StatusEvent{
		EventID:    uuid.NewString(),
		EventType:  EventOrderCreated,
		OrderID:    o.ID.String(),
		Status:     o.Status,
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
		OccurredAt: o.CreatedAt,
	}); err != nil {
		log.Error("failed to write outbox event", zap.Error(err))
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true

	return o, cart.Skipped, nil
}

func lookupProducts(ctx context.Context, tx *sql.Tx, entries []CartEntry) (map[uuid.UUID]ProductSnapshot, error) {
	ids := make([]string, 0, len(entries))
	seen := make(map[uuid.UUID]bool, len(entries))
	for _, e := range entries {
		if !seen[e.ProductID] {
			seen[e.ProductID] = true
			ids = append(ids, e.ProductID.String())
		}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, price_cents, currency, is_active
		FROM shop_products
		WHERE id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[uuid.UUID]ProductSnapshot, len(ids))
	for rows.Next() {
		var p ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.IsActive); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

const orderColumns = `
	o.id, o.user_id, o.status, o.payment_provider, o.payment_id,
	o.checkout_expires_at, o.total_cents, o.currency, o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	if err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentProvider, &o.PaymentID,
		&o.CheckoutExpiresAt, &o.TotalCents, &o.Currency, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Items = []Item{}
	return &o, nil
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM shop_orders o WHERE o.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := r.fetchItems(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	if its, ok := items[o.ID]; ok {
		o.Items = its
	}
	return o, nil
}

func (r *repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrders"),
		zap.Int("limit", filter.Limit),
		zap.Int("offset", filter.Offset),
	)

	query := "SELECT " + orderColumns + " FROM shop_orders o WHERE 1=1"
	args := []any{}
	argIndex := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND o.user_id = $%d", argIndex)
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND o.status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.fetchItems(ctx, ids)
	if err != nil {
		log.Error("failed to fetch order items", zap.Error(err))
		return nil, err
	}
	for i := range orders {
		if its, ok := items[orders[i].ID]; ok {
			orders[i].Items = its
		}
	}

	return orders, nil
}

// fetchItems loads items for several orders at once. Items whose product
// was deleted carry UnknownProductName.
func (r *repository) fetchItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	ids := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		ids[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.variant_id, COALESCE(p.name, $2),
		       oi.quantity, oi.unit_price_cents, oi.total_cents
		FROM shop_order_items oi
		LEFT JOIN shop_products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.order_id, oi.position
	`, pq.Array(ids), UnknownProductName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName,
			&it.Quantity, &it.UnitPriceCents, &it.TotalCents,
		); err != nil {
			return nil, err
		}
		result[it.OrderID] = append(result[it.OrderID], it)
	}
	return result, rows.Err()
}

func (r *repository) ClaimCheckout(ctx context.Context, id uuid.UUID, until, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shop_orders
		SET checkout_expires_at = $2, updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND (checkout_expires_at IS NULL OR checkout_expires_at < $3)
	`, id, until, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) ReleaseCheckout(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE shop_orders
		SET checkout_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	return err
}

func (r *repository) AttachCheckoutSession(ctx context.Context, id uuid.UUID, provider, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shop_orders
		SET payment_provider = $2, payment_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, provider, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TransitionStatus moves an order under a row lock. It returns the status the
// order had before the call. Re-applying the current status is a duplicate;
// a transition the state machine forbids is stale and changes nothing.
func (r *repository) TransitionStatus(ctx context.Context, t Transition) (TransitionResult, Status, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "TransitionStatus"),
		zap.String("order_id", t.OrderID.String()),
		zap.String("to", string(t.To)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	var (
		current    Status
		totalCents int64
		currency   string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, total_cents, currency
		FROM shop_orders
		WHERE id = $1
		FOR UPDATE
	`, t.OrderID).Scan(&current, &totalCents, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrOrderNotFound
	}
	if err != nil {
		return "", "", err
	}

	if current == t.To {
		return ResultDuplicate, current, nil
	}
	if !CanTransition(current, t.To) {
		return ResultStale, current, nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE shop_orders
		SET status = $2,
		    payment_provider = COALESCE($3, payment_provider),
		    payment_id = COALESCE($4, payment_id),
		    checkout_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = $5
	`, t.OrderID, t.To, nullString(t.Provider), nullString(t.PaymentRef), current)
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return "", "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", "", err
	} else if n == 0 {
		return ResultStale, current, nil
	}

	if err := outbox.Insert(ctx, tx, aggregateOrder, t.OrderID.String(), EventOrderStatusChanged, r.topic, StatusEvent{
		EventID:        uuid.NewString(),
		EventType:      EventOrderStatusChanged,
		OrderID:        t.OrderID.String(),
		Status:         t.To,
		PreviousStatus: current,
		TotalCents:     totalCents,
		Currency:       currency,
		Reason:         t.Reason,
		OccurredAt:     time.Now().UTC(),
	}); err != nil {
		log.Error("failed to write outbox event", zap.Error(err))
		return "", "", err
	}

	if err := tx.Commit(); err != nil {
		return "", "", err
	}
	committed = true

	log.Info("order status changed", zap.String("from", string(current)))
	return ResultApplied, current, nil
}

func (r *repository) FindOrderIDByPaymentID(ctx context.Context, paymentID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM shop_orders WHERE payment_id = $1 LIMIT 1
	`, paymentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrOrderNotFound
	}
	return id, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
