package order

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "shop.orders"

var orderCols = []string{
	"id", "user_id", "status", "payment_provider", "payment_id",
	"checkout_expires_at", "total_cents", "currency", "created_at", "updated_at",
}

var itemCols = []string{
	"id", "order_id", "product_id", "variant_id", "name",
	"quantity", "unit_price_cents", "total_cents",
}

func TestRepository_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		owner := uuid.New()
		tee, missing := uuid.New(), uuid.New()
		orderID, itemID := uuid.New(), uuid.New()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, name, price_cents, currency, is_active FROM shop_products WHERE id = ANY\(\$1::uuid\[\]\)`).
			WithArgs(pq.Array([]string{tee.String(), missing.String()})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_cents", "currency", "is_active"}).
				AddRow(tee.String(), "Oversized Tee", 500, "INR", true))
		mock.ExpectQuery(`INSERT INTO shop_orders \(user_id, status, total_cents, currency\)`).
			WithArgs(owner.String(), "pending", 1500, "INR").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(orderID.String(), now, now))
		mock.ExpectQuery(`INSERT INTO shop_order_items`).
			WithArgs(orderID.String(), tee.String(), nil, 0, 3, 500, 1500).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(itemID.String()))
		mock.ExpectExec(`INSERT INTO outbox`).
			WithArgs("order", orderID.String(), EventOrderCreated, testTopic, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		o, skipped, err := repo.CreateOrder(ctx, uuid.NullUUID{UUID: owner, Valid: true}, []CartEntry{
			{ProductID: tee, Quantity: 3},
			{ProductID: missing, Quantity: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, orderID, o.ID)
		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, int64(1500), o.TotalCents)
		require.Len(t, o.Items, 1)
		assert.Equal(t, itemID, o.Items[0].ID)
		assert.Equal(t, orderID, o.Items[0].OrderID)
		assert.Equal(t, []uuid.UUID{missing}, skipped)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AllMissingRollsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM shop_products`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_cents", "currency", "is_active"}))
		mock.ExpectRollback()

		_, _, err = repo.CreateOrder(ctx, uuid.NullUUID{}, []CartEntry{{ProductID: uuid.New(), Quantity: 1}})
		assert.ErrorIs(t, err, ErrNoPurchasableItems)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OutboxFailureRollsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		tee := uuid.New()
		orderID := uuid.New()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM shop_products`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_cents", "currency", "is_active"}).
				AddRow(tee.String(), "Tee", 500, "INR", true))
		mock.ExpectQuery(`INSERT INTO shop_orders`).
			WithArgs(nil, "pending", 500, "INR").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(orderID.String(), now, now))
		mock.ExpectQuery(`INSERT INTO shop_order_items`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
		mock.ExpectExec(`INSERT INTO outbox`).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, _, err = repo.CreateOrder(ctx, uuid.NullUUID{}, []CartEntry{{ProductID: tee, Quantity: 1}})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_GetOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db, testTopic)
	ctx := context.Background()

	t.Run("WithDeletedProduct", func(t *testing.T) {
		id := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`FROM shop_orders o WHERE o.id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows(orderCols).
				AddRow(id.String(), nil, "pending", "stripe", "cs_1", now, 1700, "INR", now, now))
		mock.ExpectQuery(`LEFT JOIN shop_products p ON p.id = oi.product_id WHERE oi.order_id = ANY\(\$1::uuid\[\]\) ORDER BY oi.order_id, oi.position`).
			WithArgs(pq.Array([]string{id.String()}), UnknownProductName).
			WillReturnRows(sqlmock.NewRows(itemCols).
				AddRow(uuid.NewString(), id.String(), uuid.NewString(), nil, "Tee", 1, 500, 500).
				AddRow(uuid.NewString(), id.String(), nil, nil, "Item", 1, 1200, 1200))

		o, err := repo.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.False(t, o.UserID.Valid)
		require.NotNil(t, o.PaymentID)
		assert.Equal(t, "cs_1", *o.PaymentID)
		require.NotNil(t, o.CheckoutExpiresAt)
		require.Len(t, o.Items, 2)
		assert.False(t, o.Items[1].ProductID.Valid)
		assert.Equal(t, UnknownProductName, o.Items[1].ProductName)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`FROM shop_orders o WHERE o.id = \$1`).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetOrder(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListOrders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db, testTopic)
	ctx := context.Background()

	t.Run("UserAndStatus", func(t *testing.T) {
		user := uuid.New()
		id := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`WHERE 1=1 AND o.user_id = \$1 AND o.status = \$2 ORDER BY o.created_at DESC LIMIT \$3 OFFSET \$4`).
			WithArgs(user.String(), "paid", 20, 0).
			WillReturnRows(sqlmock.NewRows(orderCols).
				AddRow(id.String(), user.String(), "paid", "stripe", "pi_1", nil, 500, "INR", now, now))
		mock.ExpectQuery(`FROM shop_order_items oi`).
			WithArgs(pq.Array([]string{id.String()}), UnknownProductName).
			WillReturnRows(sqlmock.NewRows(itemCols).
				AddRow(uuid.NewString(), id.String(), uuid.NewString(), nil, "Tee", 1, 500, 500))

		orders, err := repo.ListOrders(ctx, ListFilter{UserID: &user, Status: StatusPaid, Limit: 20})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, user, orders[0].UserID.UUID)
		assert.Nil(t, orders[0].CheckoutExpiresAt)
		assert.Len(t, orders[0].Items, 1)
	})

	t.Run("EmptySkipsItems", func(t *testing.T) {
		mock.ExpectQuery(`WHERE 1=1 ORDER BY o.created_at DESC LIMIT \$1 OFFSET \$2`).
			WithArgs(100, 40).
			WillReturnRows(sqlmock.NewRows(orderCols))

		orders, err := repo.ListOrders(ctx, ListFilter{Limit: 100, Offset: 40})
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.NotNil(t, orders)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Checkout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db, testTopic)
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC()
	until := now.Add(45 * time.Minute)

	t.Run("ClaimWins", func(t *testing.T) {
		mock.ExpectExec(`UPDATE shop_orders SET checkout_expires_at = \$2, updated_at = NOW\(\) WHERE id = \$1 AND status = 'pending' AND \(checkout_expires_at IS NULL OR checkout_expires_at < \$3\)`).
			WithArgs(id.String(), until, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.ClaimCheckout(ctx, id, until, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ClaimLoses", func(t *testing.T) {
		mock.ExpectExec(`UPDATE shop_orders SET checkout_expires_at = \$2`).
			WithArgs(id.String(), until, now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.ClaimCheckout(ctx, id, until, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Release", func(t *testing.T) {
		mock.ExpectExec(`SET checkout_expires_at = NULL`).
			WithArgs(id.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.ReleaseCheckout(ctx, id))
	})

	t.Run("AttachOnlyWhilePending", func(t *testing.T) {
		mock.ExpectExec(`SET payment_provider = \$2, payment_id = \$3, updated_at = NOW\(\) WHERE id = \$1 AND status = 'pending'`).
			WithArgs(id.String(), "stripe", "cs_1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.AttachCheckoutSession(ctx, id, "stripe", "cs_1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	lockQuery := `SELECT status, total_cents, currency FROM shop_orders WHERE id = \$1 FOR UPDATE`
	lockCols := []string{"status", "total_cents", "currency"}

	t.Run("Applied", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows(lockCols).AddRow("pending", 1500, "INR"))
		mock.ExpectExec(`UPDATE shop_orders SET status = \$2, payment_provider = COALESCE\(\$3, payment_provider\), payment_id = COALESCE\(\$4, payment_id\), checkout_expires_at = NULL, updated_at = NOW\(\) WHERE id = \$1 AND status = \$5`).
			WithArgs(id.String(), "paid", "stripe", "pi_1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO outbox`).
			WithArgs("order", id.String(), EventOrderStatusChanged, testTopic, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		res, prev, err := repo.TransitionStatus(ctx, Transition{OrderID: id, To: StatusPaid, Provider: "stripe", PaymentRef: "pi_1"})
		require.NoError(t, err)
		assert.Equal(t, ResultApplied, res)
		assert.Equal(t, StatusPending, prev)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyPaymentRefKeepsStoredOne", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows(lockCols).AddRow("paid", 1500, "INR"))
		mock.ExpectExec(`UPDATE shop_orders SET status`).
			WithArgs(id.String(), "shipped", nil, nil, "paid").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO outbox`).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		res, _, err := repo.TransitionStatus(ctx, Transition{OrderID: id, To: StatusShipped})
		require.NoError(t, err)
		assert.Equal(t, ResultApplied, res)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows(lockCols).AddRow("paid", 1500, "INR"))
		mock.ExpectRollback()

		res, prev, err := repo.TransitionStatus(ctx, Transition{OrderID: id, To: StatusPaid})
		require.NoError(t, err)
		assert.Equal(t, ResultDuplicate, res)
		assert.Equal(t, StatusPaid, prev)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StaleEventCannotRegress", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows(lockCols).AddRow("refunded", 1500, "INR"))
		mock.ExpectRollback()

		res, prev, err := repo.TransitionStatus(ctx, Transition{OrderID: id, To: StatusPaid})
		require.NoError(t, err)
		assert.Equal(t, ResultStale, res)
		assert.Equal(t, StatusRefunded, prev)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, _, err = repo.TransitionStatus(ctx, Transition{OrderID: id, To: StatusPaid})
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateErrorRollsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db, testTopic)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows(lockCols).AddRow("pending", 1500, "INR"))
		mock.ExpectExec(`UPDATE shop_orders SET status`).WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		_, _, err = repo.TransitionStatus(ctx, Transition{OrderID: id, To: StatusPaid})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_FindOrderIDByPaymentID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db, testTopic)
	ctx := context.Background()

	id := uuid.New()
	mock.ExpectQuery(`SELECT id FROM shop_orders WHERE payment_id = \$1`).
		WithArgs("pi_1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	mock.ExpectQuery(`SELECT id FROM shop_orders WHERE payment_id = \$1`).
		WithArgs("pi_missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.FindOrderIDByPaymentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = repo.FindOrderIDByPaymentID(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
