package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
)

// Charge is the flat domestic delivery charge in INR.
type Charge struct {
	Charge    float64   `json:"charge"`
	Set       bool      `json:"set"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type Store interface {
	Get(ctx context.Context) (Charge, error)
	Set(ctx context.Context, charge float64) (Charge, error)
}

type repo struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return &repo{db: db}
}

// Get returns a zero charge with Set=false when none was configured.
func (r *repo) Get(ctx context.Context) (Charge, error) {
	var c Charge
	err := r.db.QueryRowContext(ctx,
		`SELECT charge, updated_at FROM delivery_charge WHERE id = 1`,
	).Scan(&c.Charge, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Charge{}, nil
		}
		return Charge{}, fmt.Errorf("select delivery charge: %w", err)
	}
	c.Set = true
	return c, nil
}

func (r *repo) Set(ctx context.Context, charge float64) (Charge, error) {
	if charge < 0 || math.IsNaN(charge) || math.IsInf(charge, 0) {
		return Charge{}, apperr.Validation("charge must be a non-negative number", "charge")
	}

	c := Charge{Charge: charge, Set: true}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO delivery_charge (id, charge, updated_at)
         VALUES (1, $1, now())
         ON CONFLICT (id) DO UPDATE SET charge = EXCLUDED.charge, updated_at = EXCLUDED.updated_at
         RETURNING updated_at`,
		charge,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return Charge{}, fmt.Errorf("upsert delivery charge: %w", err)
	}
	return c, nil
}
