package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/delivery"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/sale"
)

const maxBodyBytes = 1 << 20

type CartService interface {
	AddItem(ctx context.Context, req cart.AddRequest) (cart.Line, bool, error)
	RemoveItem(ctx context.Context, userID, lineID string) error
	List(ctx context.Context, userID string) ([]cart.Item, error)
	AdjustQuantity(ctx context.Context, userID, lineID string, adj cart.Adjustment) (cart.Line, error)
}

type OrderPlacer interface {
	Place(ctx context.Context, p checkout.Policy, req checkout.Request) (checkout.Result, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, amountMinor int64) (payment.GatewayOrder, error)
	Verify(ctx context.Context, in payment.VerifyRequest) (payment.Result, error)
	ReportDecline(ctx context.Context, in payment.DeclineRequest) (payment.Result, error)
}

type Deps struct {
	Cart     CartService
	Checkout OrderPlacer
	Orders   order.Repository
	Payments PaymentService
	Charges  delivery.Store
	Leads    sale.Repository
}

type Options struct {
	// FrontendURL is where a verified payment is redirected.
	FrontendURL string
	Logger      *zap.Logger
}

type Handler struct {
	cart     CartService
	checkout OrderPlacer
	orders   order.Repository
	payments PaymentService
	charges  delivery.Store
	leads    sale.Repository

	frontendURL string
	logger      *zap.Logger
}

func NewHandler(d Deps, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		cart:        d.Cart,
		checkout:    d.Checkout,
		orders:      d.Orders,
		payments:    d.Payments,
		charges:     d.Charges,
		leads:       d.Leads,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		logger:      opts.Logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type errorResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Fields    []string       `json:"fields,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
	Debug     map[string]any `json:"debug,omitempty"`
}

// writeError maps err onto the response. Unclassified errors are logged and
// reported as a bare 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	resp := errorResponse{Message: "internal error"}

	var ae *apperr.Error
	if errors.As(err, &ae) && status != http.StatusInternalServerError {
		resp.Message = ae.Message
		resp.Fields = ae.Fields
		resp.Debug = ae.Details
	}
	if apperr.Retryable(err) {
		resp.Retryable = true
		w.Header().Set("Retry-After", "1")
	}

	log := logging.FromContext(r.Context(), h.logger)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	case status == http.StatusConflict:
		log.Info("request conflict", zap.Error(err))
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON body")
	}
	return nil
}
