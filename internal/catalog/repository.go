package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("product not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, title, description, price, images, category, subcategory, quantity, is_weight`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Images, &p.Category, &p.Subcategory, &p.Quantity, &p.IsWeight)
	return p, err
}

func (r *PostgresRepository) Get(ctx context.Context, productID string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// GetMany returns the products that exist among productIDs, keyed by id.
func (r *PostgresRepository) GetMany(ctx context.Context, productIDs []string) (map[string]Product, error) {
	out := make(map[string]Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// DecrementWithTx locks each product row and lowers its stock by the ordered
// quantity, clamping at zero. Rows are locked in id order so concurrent
// checkouts touching the same products cannot deadlock.
func (r *PostgresRepository) DecrementWithTx(ctx context.Context, tx pgx.Tx, lines []Line) (DecrementResult, error) {
	res := DecrementResult{}

	for _, line := range mergeLines(lines) {
		var available int
		err := tx.QueryRow(ctx, `
			SELECT quantity
			FROM products
			WHERE id=$1
			FOR UPDATE
		`, line.ProductID).Scan(&available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				res.Missing = append(res.Missing, line.ProductID)
				continue
			}
			return res, fmt.Errorf("lock product %s: %w", line.ProductID, err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET quantity = GREATEST(quantity - $2, 0), updated_at=now()
			WHERE id=$1
		`, line.ProductID, line.Quantity); err != nil {
			return res, fmt.Errorf("decrement product %s: %w", line.ProductID, err)
		}

		if available < line.Quantity {
			res.Clamped = append(res.Clamped, ClampedLine{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			})
		}
		res.Decremented = append(res.Decremented, line)
	}

	return res, nil
}

// mergeLines sums quantities per product and sorts by product id.
func mergeLines(lines []Line) []Line {
	byID := make(map[string]int, len(lines))
	for _, l := range lines {
		byID[l.ProductID] += l.Quantity
	}
	out := make([]Line, 0, len(byID))
	for id, q := range byID {
		out = append(out, Line{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
