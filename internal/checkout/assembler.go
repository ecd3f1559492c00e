package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/delivery"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/user"
)

type ProductLoader interface {
	GetMany(ctx context.Context, productIDs []string) (map[string]catalog.Product, error)
}

type ChargeReader interface {
	Get(ctx context.Context) (delivery.Charge, error)
}

// SessionChecker reports the provider status of a hosted payment session.
type SessionChecker interface {
	OrderStatus(ctx context.Context, sessionID string) (string, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type Item struct {
	ProductID string
	Price     float64
	Quantity  int
	Weight    float64
}

type Request struct {
	UserID           string
	PhoneNumber      string
	ShippingAddress  string
	ShipThrough      pricing.Mode
	ExpectedDelivery string
	Items            []Item
	TotalAmount      float64
	PaymentSessionID string
}

type Result struct {
	OrderID      string                `json:"orderId"`
	OrderNumber  string                `json:"orderNumber"`
	Status       order.Status          `json:"paymentStatus"`
	ProductTotal float64               `json:"productTotal"`
	ShippingCost float64               `json:"shippingCost"`
	TotalAmount  float64               `json:"totalAmount"`
	Clamped      []catalog.ClampedLine `json:"-"`
}

type Options struct {
	TolerancePercent float64
	Bases            pricing.Bases
	OpsEmail         string
	Logger           *zap.Logger
	Metrics          *metrics.Metrics
	Now              func() time.Time
}

type Assembler struct {
	users    user.Directory
	products ProductLoader
	rates    pricing.RateSource
	charges  ChargeReader
	sessions SessionChecker
	store    Store
	cache    CacheInvalidator
	notifier notify.Notifier
	opts     Options
	logger   *zap.Logger
}

type Deps struct {
	Users    user.Directory
	Products ProductLoader
	Rates    pricing.RateSource
	Charges  ChargeReader
	Sessions SessionChecker
	Store    Store
	Cache    CacheInvalidator
	Notifier notify.Notifier
}

func NewAssembler(d Deps, opts Options) *Assembler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Bases == (pricing.Bases{}) {
		opts.Bases = pricing.DefaultBases
	}
	return &Assembler{
		users:    d.Users,
		products: d.Products,
		rates:    d.Rates,
		charges:  d.Charges,
		sessions: d.Sessions,
		store:    d.Store,
		cache:    d.Cache,
		notifier: d.Notifier,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Place prices req under p, writes the order and dispatches the confirmation.
// Nothing is written unless every check passes.
func (a *Assembler) Place(ctx context.Context, p Policy, req Request) (res Result, err error) {
	ctx, span := otel.Tracer("storefront/checkout").Start(ctx, "checkout.place")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.policy", p.Name), attribute.Int("checkout.items", len(req.Items)))

	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		a.opts.Metrics.CheckoutOutcome(p.Name, outcome(err))
	}()

	expected, err := validate(p, req)
	if err != nil {
		return Result{}, err
	}

	u, err := a.users.Get(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Result{}, apperr.NotFound("user not found", err)
		}
		return Result{}, err
	}

	items, lines, subtotal, totalWeight, err := a.price(ctx, p, req.Items)
	if err != nil {
		return Result{}, err
	}

	shippingMethod, shippingCost, err := a.shipping(ctx, p, req.ShipThrough, totalWeight)
	if err != nil {
		return Result{}, err
	}
	total := subtotal + shippingCost

	if p.ToleranceCheck && !pricing.IsPriceValid(total, req.TotalAmount, a.opts.TolerancePercent) {
		diff, pct := pricing.Difference(total, req.TotalAmount)
		logging.FromContext(ctx, a.logger).Info("checkout price mismatch",
			zap.String("user_id", req.UserID),
			zap.Float64("server_total", total),
			zap.Float64("client_total", req.TotalAmount))
		return Result{}, apperr.PriceMismatch(total, req.TotalAmount, diff, pct)
	}

	status, err := a.sessionStatus(ctx, p, req.PaymentSessionID)
	if err != nil {
		return Result{}, err
	}

	now := a.opts.Now()
	o := &order.Order{
		OrderNumber:      order.NewOrderNumber(now),
		UserID:           u.ID,
		UserName:         u.FullName,
		UserEmail:        u.Email,
		PhoneNumber:      req.PhoneNumber,
		ShippingAddress:  req.ShippingAddress,
		ShippingMethod:   shippingMethod,
		ShippingCost:     shippingCost,
		ProductTotal:     subtotal,
		TotalAmount:      total,
		Currency:         p.Currency,
		PaymentStatus:    status,
		ExpectedDelivery: expected,
		Items:            items,
	}
	if req.PaymentSessionID != "" {
		o.Gateway = p.Gateway
		o.GatewayOrderID = req.PaymentSessionID
	}

	clearCart := p.ClearCartOn == ClearOnCreate
	dec, err := a.store.Place(ctx, o, lines, clearCart)
	if err != nil {
		var missing *MissingProductError
		if errors.As(err, &missing) {
			return Result{}, apperr.NotFound(missing.Error(), err)
		}
		if errors.Is(err, order.ErrDuplicateGatewayOrder) {
			return Result{}, apperr.Conflict("payment session already used", err)
		}
		return Result{}, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	log := logging.FromContext(ctx, a.logger)
	if clearCart && a.cache != nil {
		a.cache.Invalidate(ctx, u.ID)
	}
	for _, c := range dec.Clamped {
		log.Warn("stock clamped at zero",
			zap.String("order_id", o.ID),
			zap.String("product_id", c.ProductID),
			zap.Int("requested", c.Requested),
			zap.Int("available", c.Available))
	}
	log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("policy", p.Name),
		zap.String("payment_status", string(o.PaymentStatus)))

	if a.notifier != nil {
		a.notifier.OrderConfirmed(ctx, notify.Confirmation(*o, a.opts.OpsEmail))
	}

	return Result{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		Status:       o.PaymentStatus,
		ProductTotal: subtotal,
		ShippingCost: shippingCost,
		TotalAmount:  total,
		Clamped:      dec.Clamped,
	}, nil
}

func validate(p Policy, req Request) (time.Time, error) {
	var missing []string
	if req.UserID == "" {
		missing = append(missing, "user")
	}
	if req.PhoneNumber == "" {
		missing = append(missing, "phoneNumber")
	}
	if req.ShippingAddress == "" {
		missing = append(missing, "shippingAddress")
	}
	if len(req.Items) == 0 {
		missing = append(missing, "items")
	}
	if req.ExpectedDelivery == "" {
		missing = append(missing, "expectedDelivery")
	}
	if p.ToleranceCheck && req.TotalAmount == 0 {
		missing = append(missing, "totalAmount")
	}
	if p.Shipping == ShippingByWeight && req.ShipThrough == "" {
		missing = append(missing, "shipThrough")
	}
	if len(missing) > 0 {
		return time.Time{}, apperr.MissingFields(missing...)
	}

	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case it.ProductID == "":
			return time.Time{}, apperr.Validation("item product id is required", field+".productId")
		case it.Quantity < 1:
			return time.Time{}, apperr.Validation("item quantity must be at least 1", field+".quantity")
		case it.Weight <= 0:
			return time.Time{}, apperr.Validation("item weight must be positive", field+".weight")
		}
	}

	expected, err := parseDate(req.ExpectedDelivery)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid expectedDelivery", "expectedDelivery")
	}
	return expected, nil
}

func (a *Assembler) price(ctx context.Context, p Policy, reqItems []Item) ([]order.Item, []catalog.Line, float64, float64, error) {
	ids := make([]string, 0, len(reqItems))
	for _, it := range reqItems {
		ids = append(ids, it.ProductID)
	}
	products, err := a.products.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, 0, 0, err
	}

	items := make([]order.Item, 0, len(reqItems))
	lines := make([]catalog.Line, 0, len(reqItems))
	var subtotal, totalWeight float64
	for _, it := range reqItems {
		prod, ok := products[it.ProductID]
		if !ok {
			return nil, nil, 0, 0, apperr.NotFound("product not found: "+it.ProductID, catalog.ErrNotFound)
		}
		if p.PriceSource == ClientDeclared && !pricing.IsPriceValid(prod.Price, it.Price, a.opts.TolerancePercent) {
			diff, pct := pricing.Difference(prod.Price, it.Price)
			return nil, nil, 0, 0, apperr.PriceMismatch(prod.Price, it.Price, diff, pct)
		}

		snap := order.Item{
			ProductID:   prod.ID,
			Title:       prod.Title,
			Images:      prod.Images,
			Quantity:    it.Quantity,
			Price:       prod.Price,
			Weight:      it.Weight,
			TotalWeight: float64(it.Quantity) * it.Weight,
		}
		subtotal += snap.LineTotal()
		totalWeight += snap.TotalWeight
		items = append(items, snap)
		lines = append(lines, catalog.Line{ProductID: prod.ID, Quantity: it.Quantity})
	}
	return items, lines, subtotal, totalWeight, nil
}

func (a *Assembler) shipping(ctx context.Context, p Policy, mode pricing.Mode, totalWeight float64) (string, float64, error) {
	if p.Shipping == ShippingFlatDomestic {
		if a.charges == nil {
			return order.ShippingDomestic, 0, nil
		}
		c, err := a.charges.Get(ctx)
		if err != nil {
			return "", 0, err
		}
		return order.ShippingDomestic, c.Charge, nil
	}

	if mode != pricing.ModeAir && mode != pricing.ModeShip {
		return "", 0, apperr.Validation("invalid shipping method", "shipThrough")
	}
	rate, err := a.rates.Rate(ctx)
	if err != nil {
		return "", 0, err
	}
	cost, err := a.opts.Bases.ShippingCost(totalWeight, mode, rate)
	if err != nil {
		return "", 0, err
	}
	return pricing.ShippingMethodName(mode), cost, nil
}

// sessionStatus maps a hosted PayPal session to the initial order status.
func (a *Assembler) sessionStatus(ctx context.Context, p Policy, sessionID string) (order.Status, error) {
	if sessionID == "" || p.Gateway != order.GatewayPayPal || a.sessions == nil {
		return order.StatusPending, nil
	}
	st, err := a.sessions.OrderStatus(ctx, sessionID)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindGateway {
			err = apperr.Gateway(order.GatewayPayPal, err)
		}
		return "", err
	}
	if payment.IsPayPalPaid(st) {
		return order.StatusSuccess, nil
	}
	return order.StatusPending, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(24 * time.Hour), nil
}

func outcome(err error) string {
	if err == nil {
		return "created"
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindPriceMismatch:
		return "price_mismatch"
	case apperr.KindGateway:
		return "gateway_error"
	case apperr.KindConflict:
		return "conflict"
	default:
		return "error"
	}
}
