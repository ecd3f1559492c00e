// Package payment creates domestic payment sessions and settles orders from
// gateway callbacks.
package payment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
)

type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type OrderStore interface {
	GetByID(ctx context.Context, orderID string) (order.Order, error)
	LockByGatewayOrderID(ctx context.Context, tx pgx.Tx, gateway, gatewayOrderID string) (order.Order, error)
	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, orderID string, from, to order.Status) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string) (GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
}

type CartClearer interface {
	ClearWithTx(ctx context.Context, tx pgx.Tx, userID string) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type Options struct {
	KeySecret string
	// ClearCartOnSuccess empties the buyer's cart when a payment settles.
	ClearCartOnSuccess bool
	OpsEmail           string
	Logger             *zap.Logger
	Metrics            *metrics.Metrics
}

type Service struct {
	db       TxBeginner
	orders   OrderStore
	payments Repository
	gateway  Gateway
	carts    CartClearer
	cache    CacheInvalidator
	notifier notify.Notifier
	opts     Options
	logger   *zap.Logger
}

func NewService(db TxBeginner, orders OrderStore, payments Repository, gw Gateway, carts CartClearer, cache CacheInvalidator, notifier notify.Notifier, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		orders:   orders,
		payments: payments,
		gateway:  gw,
		carts:    carts,
		cache:    cache,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// CreateIntent opens an INR payment session for amountMinor paise.
func (s *Service) CreateIntent(ctx context.Context, amountMinor int64) (GatewayOrder, error) {
	if amountMinor <= 0 {
		return GatewayOrder{}, apperr.Validation("invalid amount", "amount")
	}
	return s.gateway.CreateOrder(ctx, amountMinor, order.CurrencyINR)
}

type VerifyRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type Result struct {
	OrderID string       `json:"orderId"`
	Status  order.Status `json:"paymentStatus"`
	// Replayed is set when the order already carried this outcome.
	Replayed bool `json:"replayed"`
}

// Verify checks the gateway signature and settles the order as paid. Repeated
// calls for the same payment return the stored outcome without side effects.
func (s *Service) Verify(ctx context.Context, in VerifyRequest) (Result, error) {
	ctx, span := otel.Tracer("storefront/payment").Start(ctx, "payment.verify")
	defer span.End()
	span.SetAttributes(attribute.String("payment.gateway_order_id", in.GatewayOrderID))

	var missing []string
	if in.GatewayOrderID == "" {
		missing = append(missing, "gatewayOrderId")
	}
	if in.GatewayPaymentID == "" {
		missing = append(missing, "gatewayPaymentId")
	}
	if in.Signature == "" {
		missing = append(missing, "signature")
	}
	if len(missing) > 0 {
		return Result{}, apperr.MissingFields(missing...)
	}

	if !VerifySignature(s.opts.KeySecret, in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		s.opts.Metrics.VerificationOutcome("invalid_signature")
		return Result{}, apperr.Signature("invalid payment signature")
	}

	res, o, err := s.settle(ctx, in)
	if err != nil {
		span.RecordError(err)
		s.opts.Metrics.VerificationOutcome("error")
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("payment.replayed", res.Replayed))
	if res.Replayed {
		s.opts.Metrics.VerificationOutcome("replayed")
		return res, nil
	}
	s.opts.Metrics.VerificationOutcome("success")

	if s.opts.ClearCartOnSuccess && s.cache != nil {
		s.cache.Invalidate(ctx, o.UserID)
	}
	s.confirm(ctx, o.ID)
	return res, nil
}

func (s *Service) settle(ctx context.Context, in VerifyRequest) (Result, order.Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, order.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.lock(ctx, tx, in.GatewayOrderID)
	if err != nil {
		return Result{}, order.Order{}, err
	}
	res := Result{OrderID: o.ID, Status: order.StatusSuccess}

	switch o.PaymentStatus {
	case order.StatusSuccess:
		p, err := s.payments.ByOrderWithTx(ctx, tx, o.ID)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return Result{}, order.Order{}, err
		}
		if err == nil && p.GatewayPaymentID == in.GatewayPaymentID {
			res.Replayed = true
			return res, o, nil
		}
		return Result{}, order.Order{}, apperr.Conflict("order already paid", order.ErrInvalidTransition)
	case order.StatusFailed:
		return Result{}, order.Order{}, apperr.Conflict("order payment already failed", order.ErrInvalidTransition)
	}

	inserted, err := s.payments.InsertWithTx(ctx, tx, &Payment{
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		Signature:        in.Signature,
		OrderID:          o.ID,
	})
	if err != nil {
		return Result{}, order.Order{}, err
	}
	if !inserted {
		return Result{}, order.Order{}, apperr.Conflict("payment already recorded for another order", nil)
	}

	if err := s.transition(ctx, tx, o, order.StatusSuccess); err != nil {
		return Result{}, order.Order{}, err
	}
	if s.opts.ClearCartOnSuccess {
		if err := s.carts.ClearWithTx(ctx, tx, o.UserID); err != nil {
			return Result{}, order.Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, order.Order{}, err
	}
	return res, o, nil
}

type DeclineRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
}

// ReportDecline marks the order failed after the provider confirms the payment failed.
func (s *Service) ReportDecline(ctx context.Context, in DeclineRequest) (Result, error) {
	var missing []string
	if in.GatewayOrderID == "" {
		missing = append(missing, "gatewayOrderId")
	}
	if in.GatewayPaymentID == "" {
		missing = append(missing, "gatewayPaymentId")
	}
	if len(missing) > 0 {
		return Result{}, apperr.MissingFields(missing...)
	}

	p, err := s.gateway.FetchPayment(ctx, in.GatewayPaymentID)
	if err != nil {
		return Result{}, err
	}
	if p.OrderID != in.GatewayOrderID {
		return Result{}, apperr.Validation("payment does not belong to order", "gatewayPaymentId")
	}
	if p.Status != PaymentStatusFailed {
		return Result{}, apperr.Conflict("payment not declined", nil)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.lock(ctx, tx, in.GatewayOrderID)
	if err != nil {
		return Result{}, err
	}
	res := Result{OrderID: o.ID, Status: order.StatusFailed}

	switch o.PaymentStatus {
	case order.StatusFailed:
		res.Replayed = true
		return res, nil
	case order.StatusSuccess:
		return Result{}, apperr.Conflict("order already paid", order.ErrInvalidTransition)
	}

	if err := s.transition(ctx, tx, o, order.StatusFailed); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	s.opts.Metrics.VerificationOutcome("declined")
	logging.FromContext(ctx, s.logger).Info("payment declined",
		zap.String("order_id", o.ID),
		zap.String("gateway_payment_id", in.GatewayPaymentID),
		zap.String("reason", p.ErrorDescription))
	return res, nil
}

func (s *Service) lock(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (order.Order, error) {
	o, err := s.orders.LockByGatewayOrderID(ctx, tx, order.GatewayRazorpay, gatewayOrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return order.Order{}, apperr.NotFound("order not found", err)
		}
		return order.Order{}, err
	}
	return o, nil
}

func (s *Service) transition(ctx context.Context, tx pgx.Tx, o order.Order, to order.Status) error {
	err := s.orders.UpdateStatusWithTx(ctx, tx, o.ID, o.PaymentStatus, to)
	if errors.Is(err, order.ErrInvalidTransition) {
		return apperr.Conflict("order status changed", err)
	}
	return err
}

func (s *Service) confirm(ctx context.Context, orderID string) {
	if s.notifier == nil {
		return
	}
	full, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		logging.FromContext(ctx, s.logger).Warn("load order for confirmation failed",
			zap.String("order_id", orderID), zap.Error(err))
		return
	}
	s.notifier.OrderConfirmed(ctx, notify.Confirmation(full, s.opts.OpsEmail))
}
