package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Payment is the audit record of a verified gateway payment.
type Payment struct {
	ID               string    `json:"id"`
	GatewayOrderID   string    `json:"gatewayOrderId"`
	GatewayPaymentID string    `json:"gatewayPaymentId"`
	Signature        string    `json:"signature"`
	OrderID          string    `json:"orderId"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Repository interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, p *Payment) (bool, error)
	ByOrderWithTx(ctx context.Context, tx pgx.Tx, orderID string) (Payment, error)
}

type PostgresRepository struct{}

func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

// InsertWithTx records p. It reports false, without error, when a payment with
// the same gateway payment id or order already exists.
func (r *PostgresRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, p *Payment) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO payments (id, gateway_order_id, gateway_payment_id, signature, order_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`, p.ID, p.GatewayOrderID, p.GatewayPaymentID, p.Signature, p.OrderID).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert payment: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) ByOrderWithTx(ctx context.Context, tx pgx.Tx, orderID string) (Payment, error) {
	var p Payment
	err := tx.QueryRow(ctx, `
		SELECT id, gateway_order_id, gateway_payment_id, signature, order_id, created_at
		FROM payments WHERE order_id = $1
	`, orderID).Scan(&p.ID, &p.GatewayOrderID, &p.GatewayPaymentID, &p.Signature, &p.OrderID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, fmt.Errorf("select payment: %w", err)
	}
	return p, nil
}
