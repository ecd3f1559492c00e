package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/upstream"
)

func newUpstream(provider string) *upstream.Client {
	return upstream.New(provider, upstream.Options{Timeout: time.Second})
}

func TestRazorpayClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 49900, body["amount"])
		assert.Equal(t, "INR", body["currency"])
		assert.EqualValues(t, 1, body["payment_capture"])

		_, _ = w.Write([]byte(`{"id":"order_abc","amount":49900,"currency":"INR","status":"created"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL+"/", "rzp_key", "rzp_secret", newUpstream("razorpay"))
	got, err := c.CreateOrder(context.Background(), 49900, "INR")
	require.NoError(t, err)
	assert.Equal(t, GatewayOrder{ID: "order_abc", Amount: 49900, Currency: "INR", Status: "created"}, got)
}

func TestRazorpayClient_ErrorDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be at least INR 1.00"}}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s", newUpstream("razorpay"))
	_, err := c.CreateOrder(context.Background(), 10, "INR")
	require.Error(t, err)
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "The amount must be at least INR 1.00")
	assert.ErrorIs(t, err, apperr.ErrRejected)
	assert.False(t, apperr.Retryable(err))
}

func TestRazorpayClient_RateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Too many requests"}}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s", newUpstream("razorpay"))
	_, err := c.CreateOrder(context.Background(), 100, "INR")
	require.Error(t, err)
	assert.True(t, apperr.Retryable(err))
}

func TestRazorpayClient_FetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_1","order_id":"order_abc","status":"failed","error_description":"card declined"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s", newUpstream("razorpay"))
	p, err := c.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, GatewayPayment{ID: "pay_1", OrderID: "order_abc", Status: PaymentStatusFailed, ErrorDescription: "card declined"}, p)
}

func TestPayPalClient_OrderStatus(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			tokenCalls.Add(1)
			user, pass, _ := r.BasicAuth()
			assert.Equal(t, "client", user)
			assert.Equal(t, "secret", pass)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
		case "/v2/checkout/orders/PAY-1":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"PAY-1","status":"COMPLETED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewPayPalClient(srv.URL, "client", "secret", newUpstream("paypal"))
	for i := 0; i < 2; i++ {
		status, err := c.OrderStatus(context.Background(), "PAY-1")
		require.NoError(t, err)
		assert.Equal(t, PayPalCompleted, status)
		assert.True(t, IsPayPalPaid(status))
	}
	assert.EqualValues(t, 1, tokenCalls.Load(), "token is cached")
}

func TestPayPalClient_TokenRefreshAfterExpiry(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			tokenCalls.Add(1)
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":120}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"CREATED"}`))
	}))
	defer srv.Close()

	now := time.Now()
	c := NewPayPalClient(srv.URL, "client", "secret", newUpstream("paypal"))
	c.now = func() time.Time { return now }

	_, err := c.OrderStatus(context.Background(), "A")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	status, err := c.OrderStatus(context.Background(), "A")
	require.NoError(t, err)

	assert.False(t, IsPayPalPaid(status))
	assert.EqualValues(t, 2, tokenCalls.Load())
}

func TestPayPalClient_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewPayPalClient(srv.URL, "client", "bad", newUpstream("paypal"))
	_, err := c.OrderStatus(context.Background(), "A")
	require.Error(t, err)
	assert.False(t, apperr.Retryable(err), "bad credentials")
}

func TestPayPalClient_UnknownOrderIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewPayPalClient(srv.URL, "client", "secret", newUpstream("paypal"))
	_, err := c.OrderStatus(context.Background(), "MISSING")
	require.Error(t, err)
	assert.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	assert.ErrorIs(t, err, apperr.ErrRejected)
	assert.False(t, apperr.Retryable(err))
}

func TestPayPalClient_ExpiredTokenIsRetryable(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			tokenCalls.Add(1)
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		if tokenCalls.Load() == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
	}))
	defer srv.Close()

	c := NewPayPalClient(srv.URL, "client", "secret", newUpstream("paypal"))
	_, err := c.OrderStatus(context.Background(), "A")
	require.Error(t, err)
	assert.True(t, apperr.Retryable(err))

	status, err := c.OrderStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, IsPayPalPaid(status))
	assert.EqualValues(t, 2, tokenCalls.Load())
}
