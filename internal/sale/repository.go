package sale

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *Lead) error
	List(ctx context.Context) ([]Lead, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

// Create validates and stores l, filling in its id, creation time and the
// normalised harvesting date.
func (r *repo) Create(ctx context.Context, l *Lead) error {
	harvested, err := l.Validate()
	if err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO sale_leads (id, farmer_name, patta_number, state, mandal, revenue_village, pincode,
             mobile_number, crop_name, farming_method, harvesting_date, product_name, product_form,
             product_condition, quantity, price_per_kg, message)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
         RETURNING created_at`,
		l.ID, l.FarmerName, l.PattaNumber, l.State, l.Mandal, l.RevenueVillage, l.Pincode,
		l.MobileNumber, l.CropName, l.FarmingMethod, harvested, l.ProductName, l.ProductForm,
		l.ProductCondition, l.Quantity, l.PricePerKg, l.Message,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale lead: %w", err)
	}
	l.HarvestingDate = harvested.Format(dateLayout)
	return nil
}

// List returns every lead, newest first.
func (r *repo) List(ctx context.Context) ([]Lead, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, farmer_name, patta_number, state, mandal, revenue_village, pincode,
             mobile_number, crop_name, farming_method, harvesting_date, product_name, product_form,
             product_condition, quantity, price_per_kg, message, created_at
         FROM sale_leads ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select sale leads: %w", err)
	}
	defer rows.Close()

	leads := []Lead{}
	for rows.Next() {
		var (
			l         Lead
			harvested sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.FarmerName, &l.PattaNumber, &l.State, &l.Mandal, &l.RevenueVillage, &l.Pincode,
			&l.MobileNumber, &l.CropName, &l.FarmingMethod, &harvested, &l.ProductName, &l.ProductForm,
			&l.ProductCondition, &l.Quantity, &l.PricePerKg, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale lead: %w", err)
		}
		if harvested.Valid {
			l.HarvestingDate = harvested.Time.Format(dateLayout)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return leads, nil
}
