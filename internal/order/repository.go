package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateGatewayOrder means another order already holds the payment session id.
	ErrDuplicateGatewayOrder = errors.New("gateway order already used")
)

const gatewayOrderIndex = "uq_orders_gateway_order"

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	GetByID(ctx context.Context, orderID string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const orderColumns = `id, order_number, user_id, user_name, user_email, phone_number, shipping_address,
	shipping_method, shipping_cost, product_total, total_amount, currency, payment_status, gateway,
	COALESCE(gateway_order_id, ''), expected_delivery, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.UserName, &o.UserEmail, &o.PhoneNumber, &o.ShippingAddress,
		&o.ShippingMethod, &o.ShippingCost, &o.ProductTotal, &o.TotalAmount, &o.Currency, &o.PaymentStatus, &o.Gateway,
		&o.GatewayOrderID, &o.ExpectedDelivery, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateWithTx inserts o and its item snapshots inside tx, assigning ids.
func (r *PostgresRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO orders (id, order_number, user_id, user_name, user_email, phone_number, shipping_address,
			shipping_method, shipping_cost, product_total, total_amount, currency, payment_status, gateway,
			gateway_order_id, expected_delivery)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`, o.ID, o.OrderNumber, o.UserID, o.UserName, o.UserEmail, o.PhoneNumber, o.ShippingAddress,
		o.ShippingMethod, o.ShippingCost, o.ProductTotal, o.TotalAmount, o.Currency, o.PaymentStatus, o.Gateway,
		nullIfEmpty(o.GatewayOrderID), o.ExpectedDelivery).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == gatewayOrderIndex {
			return fmt.Errorf("insert order %s: %w", o.GatewayOrderID, ErrDuplicateGatewayOrder)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, title, images, quantity, price, weight, total_weight)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, it.ID, o.ID, it.ProductID, it.Title, it.Images, it.Quantity, it.Price, it.Weight, it.TotalWeight)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.itemsFor(ctx, []string{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = nonNil(items[o.ID])
	return o, nil
}

// ListByUser returns the user's orders, newest first, with their items.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = nonNil(items[orders[i].ID])
	}
	return orders, nil
}

func (r *PostgresRepository) itemsFor(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, id, product_id, title, images, quantity, price, weight, total_weight
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, product_id, weight
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Item, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			it      Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.Title, &it.Images, &it.Quantity, &it.Price, &it.Weight, &it.TotalWeight); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// LockByGatewayOrderID selects the order created for a gateway session and
// locks its row until tx ends. Items are not loaded.
func (r *PostgresRepository) LockByGatewayOrderID(ctx context.Context, tx pgx.Tx, gateway, gatewayOrderID string) (Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE gateway = $1 AND gateway_order_id = $2 FOR UPDATE`,
		gateway, gatewayOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

// UpdateStatusWithTx moves the order from one status to the next. The update
// only applies while the stored status still equals from.
func (r *PostgresRepository) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, orderID string, from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1 AND payment_status = $3`,
		orderID, to, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s is no longer %s: %w", orderID, from, ErrInvalidTransition)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
