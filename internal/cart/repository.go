package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLineNotFound   = errors.New("cart item not found")
	ErrProductMissing = errors.New("product not found")
)

type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Add(ctx context.Context, userID, productID string, quantity int, weight float64) (Line, bool, error)
	LineWithStock(ctx context.Context, userID, lineID string) (Line, int, error)
	SetQuantity(ctx context.Context, userID, lineID string, quantity int) (Line, error)
	Remove(ctx context.Context, userID, lineID string) error
	Lines(ctx context.Context, userID string) ([]Line, error)
}

type PostgresRepository struct {
	db DBPool
}

func NewPostgresRepository(db DBPool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add merges into the existing (product, weight) line or creates a new one.
// The bool result reports whether an existing line was incremented.
func (r *PostgresRepository) Add(ctx context.Context, userID, productID string, quantity int, weight float64) (Line, bool, error) {
	l := Line{UserID: userID, ProductID: productID, Weight: weight}
	var merged bool
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_lines (id, user_id, product_id, quantity, weight)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id, weight)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING id, quantity, updated_at, (xmax <> 0) AS merged
	`, uuid.NewString(), userID, productID, quantity, weight).Scan(&l.ID, &l.Quantity, &l.UpdatedAt, &merged)
	if err != nil {
		return Line{}, false, fmt.Errorf("upsert cart line: %w", err)
	}
	return l, merged, nil
}

// LineWithStock returns the line and the current stock of its product.
func (r *PostgresRepository) LineWithStock(ctx context.Context, userID, lineID string) (Line, int, error) {
	l := Line{UserID: userID}
	var stock int
	err := r.db.QueryRow(ctx, `
		SELECT l.id, l.product_id, l.quantity, l.weight, l.updated_at, COALESCE(p.quantity, -1)
		FROM cart_lines l
		LEFT JOIN products p ON p.id = l.product_id
		WHERE l.id = $1 AND l.user_id = $2
	`, lineID, userID).Scan(&l.ID, &l.ProductID, &l.Quantity, &l.Weight, &l.UpdatedAt, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, 0, ErrLineNotFound
		}
		return Line{}, 0, fmt.Errorf("select cart line: %w", err)
	}
	if stock < 0 {
		return l, 0, ErrProductMissing
	}
	return l, stock, nil
}

func (r *PostgresRepository) SetQuantity(ctx context.Context, userID, lineID string, quantity int) (Line, error) {
	l := Line{ID: lineID, UserID: userID, Quantity: quantity}
	err := r.db.QueryRow(ctx, `
		UPDATE cart_lines SET quantity = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING product_id, weight, updated_at
	`, lineID, userID, quantity).Scan(&l.ProductID, &l.Weight, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, ErrLineNotFound
		}
		return Line{}, fmt.Errorf("update cart line: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, lineID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND user_id = $2`, lineID, userID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// Lines returns the user's cart lines in insertion order.
func (r *PostgresRepository) Lines(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, quantity, weight, updated_at
		FROM cart_lines
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		l := Line{UserID: userID}
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.Weight, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return lines, nil
}

// ClearWithTx empties the cart as part of a caller-owned transaction.
func (r *PostgresRepository) ClearWithTx(ctx context.Context, tx pgx.Tx, userID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
