package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/delivery"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/sale"
)

type fakeCart struct {
	added   cart.AddRequest
	adj     cart.Adjustment
	merged  bool
	err     error
	removed []string
}

func (f *fakeCart) AddItem(_ context.Context, req cart.AddRequest) (cart.Line, bool, error) {
	f.added = req
	return cart.Line{ID: "l1", ProductID: req.ProductID, Quantity: req.Quantity}, f.merged, f.err
}

func (f *fakeCart) RemoveItem(_ context.Context, userID, lineID string) error {
	f.removed = []string{userID, lineID}
	return f.err
}

func (f *fakeCart) List(_ context.Context, userID string) ([]cart.Item, error) {
	return []cart.Item{{CartID: "l1", ProductID: "p1"}}, f.err
}

func (f *fakeCart) AdjustQuantity(_ context.Context, _, lineID string, adj cart.Adjustment) (cart.Line, error) {
	f.adj = adj
	return cart.Line{ID: lineID, Quantity: 3}, f.err
}

type fakePlacer struct {
	policy checkout.Policy
	req    checkout.Request
	err    error
}

func (f *fakePlacer) Place(_ context.Context, p checkout.Policy, req checkout.Request) (checkout.Result, error) {
	f.policy, f.req = p, req
	if f.err != nil {
		return checkout.Result{}, f.err
	}
	return checkout.Result{OrderID: "o1", OrderNumber: "#SVAH1", Status: order.StatusPending, TotalAmount: 34}, nil
}

type fakeOrders struct{}

func (fakeOrders) GetByID(_ context.Context, id string) (order.Order, error) {
	if id != "o1" {
		return order.Order{}, order.ErrNotFound
	}
	return order.Order{ID: "o1", PaymentStatus: order.StatusSuccess}, nil
}

func (fakeOrders) ListByUser(context.Context, string) ([]order.Order, error) {
	return []order.Order{}, nil
}

type fakePayments struct {
	amount   int64
	verified payment.VerifyRequest
	declined payment.DeclineRequest
	err      error
}

func (f *fakePayments) CreateIntent(_ context.Context, amount int64) (payment.GatewayOrder, error) {
	f.amount = amount
	return payment.GatewayOrder{ID: "order_1", Amount: amount, Currency: "INR"}, f.err
}

func (f *fakePayments) Verify(_ context.Context, in payment.VerifyRequest) (payment.Result, error) {
	f.verified = in
	return payment.Result{OrderID: "o1", Status: order.StatusSuccess}, f.err
}

func (f *fakePayments) ReportDecline(_ context.Context, in payment.DeclineRequest) (payment.Result, error) {
	f.declined = in
	return payment.Result{OrderID: "o1", Status: order.StatusFailed}, f.err
}

type fakeCharges struct{ set float64 }

func (f *fakeCharges) Get(context.Context) (delivery.Charge, error) {
	return delivery.Charge{Charge: f.set, Set: true}, nil
}

func (f *fakeCharges) Set(_ context.Context, c float64) (delivery.Charge, error) {
	if c < 0 {
		return delivery.Charge{}, apperr.Validation("charge must be a non-negative number", "charge")
	}
	f.set = c
	return delivery.Charge{Charge: c, Set: true}, nil
}

type fakeLeads struct{ created []sale.Lead }

func (f *fakeLeads) Create(_ context.Context, l *sale.Lead) error {
	if l.FarmerName == "" {
		return apperr.MissingFields("farmerName")
	}
	l.ID = "lead-1"
	f.created = append(f.created, *l)
	return nil
}

func (f *fakeLeads) List(context.Context) ([]sale.Lead, error) { return f.created, nil }

type server struct {
	cart     *fakeCart
	placer   *fakePlacer
	payments *fakePayments
	charges  *fakeCharges
	leads    *fakeLeads
	router   http.Handler
}

func newServer() *server {
	s := &server{
		cart:     &fakeCart{},
		placer:   &fakePlacer{},
		payments: &fakePayments{},
		charges:  &fakeCharges{},
		leads:    &fakeLeads{},
	}
	h := NewHandler(Deps{
		Cart:     s.cart,
		Checkout: s.placer,
		Orders:   fakeOrders{},
		Payments: s.payments,
		Charges:  s.charges,
		Leads:    s.leads,
	}, Options{FrontendURL: "https://shop.example.com/"})
	s.router = NewRouter(h, RouterOptions{Metrics: metrics.New(nil), CORSOrigins: []string{"*"}})
	return s
}

func (s *server) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	rec := newServer().do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer()
	s.do(http.MethodGet, "/health", "")

	rec := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}

func TestAddToCart(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPost, "/api/cart/add", `{"userId":"u1","productId":"p1","quantity":2,"weight":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Item added to cart", body["message"])
	assert.Equal(t, cart.AddRequest{UserID: "u1", ProductID: "p1", Quantity: 2, Weight: 0.5}, s.cart.added)

	s.cart.merged = true
	rec = s.do(http.MethodPost, "/api/cart/add", `{"userId":"u1","productId":"p1","quantity":1,"weight":0.5}`)
	assert.Equal(t, "Cart item quantity updated", decode(t, rec)["message"])
}

func TestAddToCart_BadJSON(t *testing.T) {
	rec := newServer().do(http.MethodPost, "/api/cart/add", `{"userId":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestRemoveFromCart_NotFound(t *testing.T) {
	s := newServer()
	s.cart.err = apperr.NotFound("cart item not found", cart.ErrLineNotFound)

	rec := s.do(http.MethodDelete, "/api/cart/delete?userId=u1&cartItemId=l9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "cart item not found", decode(t, rec)["message"])
	assert.Equal(t, []string{"u1", "l9"}, s.cart.removed)
}

func TestGetCartAndUpdateQuantity(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodGet, "/api/cart/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = s.do(http.MethodPatch, "/api/cart/u1/items/l1", `{"action":"increase"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cart.Adjustment{Action: cart.ActionIncrease}, s.cart.adj)

	s.cart.err = apperr.Validation("only 2 items left in stock", "quantity")
	rec = s.do(http.MethodPatch, "/api/cart/u1/items/l1", `{"newQuantity":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"quantity"}, decode(t, rec)["fields"])
}

func TestPlaceInternationalOrder(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPost, "/api/cart/order", `{
		"user":"u1","phoneNumber":"+1555","shippingAddress":"1 Main St","totalAmount":34,
		"shipThrough":"air","expectedDelivery":"2026-03-20","paypalOid":"PP-1",
		"items":[{"_id":"p1","price":10,"quantity":2,"weight":0.5}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "o1", body["orderId"])
	assert.Equal(t, "Pending", body["paymentStatus"])
	assert.Equal(t, "international", s.placer.policy.Name)
	assert.Equal(t, "PP-1", s.placer.req.PaymentSessionID)
	assert.Equal(t, "p1", s.placer.req.Items[0].ProductID)
}

func TestPlaceDomesticOrder(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPost, "/api/cart/inr-order", `{"user":"u1","razorpayOrderId":"order_1","items":[{"productId":"p1","quantity":1,"weight":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "domestic", s.placer.policy.Name)
	assert.Equal(t, "order_1", s.placer.req.PaymentSessionID)
}

func TestPlaceOrder_PriceMismatch(t *testing.T) {
	s := newServer()
	s.placer.err = apperr.PriceMismatch(34, 30, 4, 11.76)

	rec := s.do(http.MethodPost, "/api/cart/order", `{"user":"u1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "price verification failed", body["message"])
	debug, ok := body["debug"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 34.0, debug["backendCalculation"])
	assert.Equal(t, "11.7600%", debug["percentageDifference"])
}

func TestPlaceOrder_GatewayErrorIsRetryable(t *testing.T) {
	s := newServer()
	s.placer.err = apperr.Gateway("exchange-rate", errors.Join(apperr.ErrCircuitOpen, errors.New("open")))

	rec := s.do(http.MethodPost, "/api/cart/order", `{"user":"u1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, true, decode(t, rec)["retryable"])
}

func TestPlaceOrder_ProviderRejectionIsNotRetryable(t *testing.T) {
	s := newServer()
	s.placer.err = apperr.GatewayRejected("razorpay", http.StatusBadRequest, "The amount must be at least INR 1.00")

	rec := s.do(http.MethodPost, "/api/cart/order", `{"user":"u1"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
	body := decode(t, rec)
	assert.Equal(t, "razorpay: The amount must be at least INR 1.00", body["message"])
	assert.Nil(t, body["retryable"])
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	s := newServer()
	s.placer.err = errors.New("pq: password authentication failed")

	rec := s.do(http.MethodPost, "/api/cart/order", `{"user":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec)["message"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestGetOrder(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodGet, "/api/order/o1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/order/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/order/user/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["data"])
}

func TestCreatePaymentIntent(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPost, "/api/razorpay/checkout", `{"amount":49900}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 49900, s.payments.amount)
	assert.Contains(t, decode(t, rec), "order")

	rec = s.do(http.MethodPost, "/api/razorpay/checkout", `{"amount":"499"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 499, s.payments.amount)

	rec = s.do(http.MethodPost, "/api/razorpay/checkout", `{"amount":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/razorpay/checkout", `{"amount":12.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyPayment_RedirectsOnSuccess(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPost, "/api/razorpay/verify", `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.example.com/complete-payment", rec.Header().Get("Location"))
	assert.Equal(t, payment.VerifyRequest{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "sig"}, s.payments.verified)
}

func TestVerifyPayment_FormPost(t *testing.T) {
	s := newServer()
	form := url.Values{"razorpay_order_id": {"order_1"}, "razorpay_payment_id": {"pay_1"}, "razorpay_signature": {"sig"}}
	req := httptest.NewRequest(http.MethodPost, "/api/razorpay/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "pay_1", s.payments.verified.GatewayPaymentID)
}

func TestVerifyPayment_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"bad signature", apperr.Signature("invalid payment signature"), http.StatusBadRequest},
		{"unknown order", apperr.NotFound("order not found", order.ErrNotFound), http.StatusNotFound},
		{"failed order", apperr.Conflict("order payment already failed", order.ErrInvalidTransition), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newServer()
			s.payments.err = tc.err

			rec := s.do(http.MethodPost, "/api/razorpay/verify", `{"gatewayOrderId":"order_1","gatewayPaymentId":"pay_1","signature":"sig"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Empty(t, rec.Header().Get("Location"))
		})
	}
}

func TestReportPaymentFailure(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPost, "/api/razorpay/failure", `{"gatewayOrderId":"order_1","gatewayPaymentId":"pay_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payment.DeclineRequest{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1"}, s.payments.declined)
}

func TestDeliveryCharge(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPut, "/api/indcharge/addindcharge", `{"charge":120}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/indcharge/getingcharge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, 120.0, data["charge"])

	rec = s.do(http.MethodPut, "/api/indcharge/addindcharge", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/indcharge/addindcharge", `{"charge":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaleLeads(t *testing.T) {
	s := newServer()

	rec := s.do(http.MethodPost, "/api/sale/submitsale", `{"farmerName":"Ravi","pincode":"500001"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/sale/submitsale", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"farmerName"}, decode(t, rec)["fields"])

	rec = s.do(http.MethodGet, "/api/sale/getsale", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)
}
