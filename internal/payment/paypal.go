package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/upstream"
)

const (
	PayPalApproved  = "APPROVED"
	PayPalCompleted = "COMPLETED"
)

// IsPayPalPaid reports whether a checkout order status means the buyer has paid.
func IsPayPalPaid(status string) bool {
	return status == PayPalApproved || status == PayPalCompleted
}

// PayPalClient reads checkout order status with a cached client-credentials token.
type PayPalClient struct {
	baseURL  string
	clientID string
	secret   string
	up       *upstream.Client
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewPayPalClient(baseURL, clientID, secret string, up *upstream.Client) *PayPalClient {
	return &PayPalClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		up:       up,
		now:      time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.secret)

	resp, err := c.up.Do(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", apperr.GatewayRejected(c.up.Provider(), resp.Status, fmt.Sprintf("token request status %d", resp.Status))
	}
	var tok tokenResponse
	if err := resp.Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", apperr.Gateway(c.up.Provider(), fmt.Errorf("invalid token response: %v", err))
	}

	c.token = tok.AccessToken
	// refresh a minute early
	c.expires = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

type checkoutOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// OrderStatus returns the checkout order's status, e.g. CREATED, APPROVED or COMPLETED.
func (c *PayPalClient) OrderStatus(ctx context.Context, orderID string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/checkout/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return "", fmt.Errorf("build order status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.up.Do(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Status == http.StatusUnauthorized {
		// the next call fetches a fresh token, so this one is worth retrying
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return "", apperr.Gateway(c.up.Provider(), fmt.Errorf("order status %d", resp.Status))
	}
	if !resp.OK() {
		return "", apperr.GatewayRejected(c.up.Provider(), resp.Status, fmt.Sprintf("order status %d", resp.Status))
	}
	var out checkoutOrder
	if err := resp.Decode(&out); err != nil {
		return "", apperr.Gateway(c.up.Provider(), err)
	}
	return out.Status, nil
}
