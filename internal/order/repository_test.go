package order

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{"id", "order_number", "user_id", "user_name", "user_email", "phone_number", "shipping_address",
	"shipping_method", "shipping_cost", "product_total", "total_amount", "currency", "payment_status", "gateway",
	"gateway_order_id", "expected_delivery", "created_at", "updated_at"}

var itemCols = []string{"order_id", "id", "product_id", "title", "images", "quantity", "price", "weight", "total_weight"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func orderRow(rows *pgxmock.Rows, id string, status Status, gatewayOrderID string) *pgxmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "#SVAH1", "u1", "Asha", "asha@example.com", "9876543210", "12 Hill Rd",
		"airline", 25.0, 100.0, 125.0, CurrencyUSD, status, GatewayPayPal,
		gatewayOrderID, now.AddDate(0, 0, 7), now, now)
}

func TestPostgresRepository_CreateWithTx(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	delivery := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

	o := &Order{
		OrderNumber:      "#SVAH1",
		UserID:           "u1",
		UserName:         "Asha",
		UserEmail:        "asha@example.com",
		PhoneNumber:      "9876543210",
		ShippingAddress:  "12 Hill Rd",
		ShippingMethod:   "airline",
		ShippingCost:     25,
		ProductTotal:     100,
		TotalAmount:      125,
		Currency:         CurrencyUSD,
		PaymentStatus:    StatusPending,
		Gateway:          GatewayPayPal,
		ExpectedDelivery: delivery,
		Items: []Item{
			{ProductID: "p1", Title: "Turmeric", Images: []string{"t.jpg"}, Quantity: 2, Price: 50, Weight: 1, TotalWeight: 2},
		},
	}

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WithArgs(pgxmock.AnyArg(), "#SVAH1", "u1", "Asha", "asha@example.com", "9876543210", "12 Hill Rd",
			"airline", 25.0, 100.0, 125.0, CurrencyUSD, StatusPending, GatewayPayPal, nil, delivery).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_items`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p1", "Turmeric", []string{"t.jpg"}, 2, 50.0, 1.0, 2.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, NewPostgresRepository(mock).CreateWithTx(ctx, tx, o))
	require.NoError(t, tx.Commit(ctx))

	assert.NotEmpty(t, o.ID)
	assert.NotEmpty(t, o.Items[0].ID)
	assert.Equal(t, now, o.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateWithTx_ItemError(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_items`)).
		WillReturnError(errors.New("item insert failed"))

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)
	err = NewPostgresRepository(mock).CreateWithTx(ctx, tx, &Order{Items: []Item{{ProductID: "p1", Quantity: 1}}})
	assert.ErrorContains(t, err, "insert order_item")
}

func TestPostgresRepository_CreateWithTx_DuplicateGatewayOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		err       error
		duplicate bool
	}{
		{"gateway order index", &pgconn.PgError{Code: "23505", ConstraintName: "uq_orders_gateway_order"}, true},
		{"other unique index", &pgconn.PgError{Code: "23505", ConstraintName: "orders_pkey"}, false},
		{"other error", errors.New("connection reset"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).WillReturnError(tc.err)

			tx, err := mock.Begin(ctx)
			require.NoError(t, err)
			err = NewPostgresRepository(mock).CreateWithTx(ctx, tx, &Order{GatewayOrderID: "order_rzp_1"})
			require.Error(t, err)
			assert.Equal(t, tc.duplicate, errors.Is(err, ErrDuplicateGatewayOrder))
		})
	}
}

func TestPostgresRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("with items", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id = $1`)).
			WithArgs("o1").
			WillReturnRows(orderRow(pgxmock.NewRows(orderCols), "o1", StatusPending, ""))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM order_items WHERE order_id = ANY($1)`)).
			WithArgs([]string{"o1"}).
			WillReturnRows(pgxmock.NewRows(itemCols).
				AddRow("o1", "i1", "p1", "Turmeric", []string{}, 2, 50.0, 1.0, 2.0))

		o, err := NewPostgresRepository(mock).GetByID(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, o.PaymentStatus)
		require.Len(t, o.Items, 1)
		assert.Equal(t, 100.0, o.Items[0].LineTotal())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id = $1`)).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewPostgresRepository(mock).GetByID(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresRepository_ListByUser(t *testing.T) {
	ctx := context.Background()

	t.Run("groups items per order", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(orderCols)
		orderRow(rows, "o2", StatusSuccess, "PAY-2")
		orderRow(rows, "o1", StatusPending, "")
		mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE user_id = $1 ORDER BY created_at DESC`)).
			WithArgs("u1").
			WillReturnRows(rows)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM order_items WHERE order_id = ANY($1)`)).
			WithArgs([]string{"o2", "o1"}).
			WillReturnRows(pgxmock.NewRows(itemCols).
				AddRow("o1", "i1", "p1", "Turmeric", []string{}, 1, 50.0, 1.0, 1.0).
				AddRow("o2", "i2", "p1", "Turmeric", []string{}, 1, 50.0, 0.5, 0.5).
				AddRow("o2", "i3", "p2", "Pepper", []string{}, 3, 20.0, 1.0, 3.0))

		orders, err := NewPostgresRepository(mock).ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "o2", orders[0].ID)
		assert.Equal(t, "PAY-2", orders[0].GatewayOrderID)
		assert.Len(t, orders[0].Items, 2)
		assert.Len(t, orders[1].Items, 1)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no orders skips item query", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE user_id = $1`)).
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows(orderCols))

		orders, err := NewPostgresRepository(mock).ListByUser(ctx, "u1")
		require.NoError(t, err)
		assert.NotNil(t, orders)
		assert.Empty(t, orders)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_LockByGatewayOrderID(t *testing.T) {
	ctx := context.Background()

	t.Run("locks", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE gateway = $1 AND gateway_order_id = $2 FOR UPDATE`)).
			WithArgs(GatewayRazorpay, "order_abc").
			WillReturnRows(orderRow(pgxmock.NewRows(orderCols), "o1", StatusPending, "order_abc"))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)
		o, err := NewPostgresRepository(mock).LockByGatewayOrderID(ctx, tx, GatewayRazorpay, "order_abc")
		require.NoError(t, err)
		assert.Equal(t, "o1", o.ID)
	})

	t.Run("absent", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
			WithArgs(GatewayRazorpay, "order_zzz").
			WillReturnError(pgx.ErrNoRows)

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)
		_, err = NewPostgresRepository(mock).LockByGatewayOrderID(ctx, tx, GatewayRazorpay, "order_zzz")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresRepository_UpdateStatusWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("pending to success", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET payment_status = $2`)).
			WithArgs("o1", StatusSuccess, StatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, NewPostgresRepository(mock).UpdateStatusWithTx(ctx, tx, "o1", StatusPending, StatusSuccess))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("illegal transition never reaches the database", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)
		err = NewPostgresRepository(mock).UpdateStatusWithTx(ctx, tx, "o1", StatusFailed, StatusSuccess)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status changed concurrently", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET payment_status = $2`)).
			WithArgs("o1", StatusFailed, StatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)
		err = NewPostgresRepository(mock).UpdateStatusWithTx(ctx, tx, "o1", StatusPending, StatusFailed)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}
