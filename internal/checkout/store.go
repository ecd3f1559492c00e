package checkout

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
)

// Store persists a priced order together with its stock and cart effects.
type Store interface {
	Place(ctx context.Context, o *order.Order, lines []catalog.Line, clearCart bool) (catalog.DecrementResult, error)
}

type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type OrderWriter interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, o *order.Order) error
}

type StockDecrementer interface {
	DecrementWithTx(ctx context.Context, tx pgx.Tx, lines []catalog.Line) (catalog.DecrementResult, error)
}

type CartClearer interface {
	ClearWithTx(ctx context.Context, tx pgx.Tx, userID string) error
}

type PostgresStore struct {
	db     TxBeginner
	orders OrderWriter
	stock  StockDecrementer
	carts  CartClearer
}

func NewPostgresStore(db TxBeginner, orders OrderWriter, stock StockDecrementer, carts CartClearer) *PostgresStore {
	return &PostgresStore{db: db, orders: orders, stock: stock, carts: carts}
}

// Place inserts o, decrements stock and optionally clears the cart in one
// transaction. Product rows stay locked until commit.
func (s *PostgresStore) Place(ctx context.Context, o *order.Order, lines []catalog.Line, clearCart bool) (catalog.DecrementResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return catalog.DecrementResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.orders.CreateWithTx(ctx, tx, o); err != nil {
		return catalog.DecrementResult{}, err
	}

	res, err := s.stock.DecrementWithTx(ctx, tx, lines)
	if err != nil {
		return catalog.DecrementResult{}, err
	}
	if len(res.Missing) > 0 {
		return res, &MissingProductError{ProductID: res.Missing[0]}
	}

	if clearCart {
		if err := s.carts.ClearWithTx(ctx, tx, o.UserID); err != nil {
			return catalog.DecrementResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return catalog.DecrementResult{}, fmt.Errorf("commit order: %w", err)
	}
	return res, nil
}

// MissingProductError reports a product deleted between pricing and the write.
type MissingProductError struct {
	ProductID string
}

func (e *MissingProductError) Error() string {
	return "product not found: " + e.ProductID
}
