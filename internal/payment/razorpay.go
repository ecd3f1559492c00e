package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/upstream"
)

// GatewayOrder is a payment session created at the provider.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type GatewayPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
}

const PaymentStatusFailed = "failed"

type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	up        *upstream.Client
}

func NewRazorpayClient(baseURL, keyID, keySecret string, up *upstream.Client) *RazorpayClient {
	return &RazorpayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		up:        up,
	}
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
}

// CreateOrder opens an auto-captured payment session for amountMinor.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amountMinor int64, currency string) (GatewayOrder, error) {
	body, err := json.Marshal(createOrderRequest{Amount: amountMinor, Currency: currency, PaymentCapture: 1})
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("marshal order request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out GatewayOrder
	if err := c.do(ctx, req, &out); err != nil {
		return GatewayOrder{}, err
	}
	return out, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (GatewayPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return GatewayPayment{}, fmt.Errorf("build payment request: %w", err)
	}

	var out GatewayPayment
	if err := c.do(ctx, req, &out); err != nil {
		return GatewayPayment{}, err
	}
	return out, nil
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *RazorpayClient) do(ctx context.Context, req *http.Request, out any) error {
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.up.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		var e razorpayError
		if resp.Decode(&e) == nil && e.Error.Description != "" {
			return apperr.GatewayRejected(c.up.Provider(), resp.Status, e.Error.Description)
		}
		return apperr.GatewayRejected(c.up.Provider(), resp.Status, fmt.Sprintf("unexpected status %d", resp.Status))
	}
	if err := resp.Decode(out); err != nil {
		return apperr.Gateway(c.up.Provider(), err)
	}
	return nil
}
