package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	CurrencyUSD = "USD"
	CurrencyINR = "INR"

	GatewayPayPal   = "paypal"
	GatewayRazorpay = "razorpay"

	ShippingDomestic = "domestic"
)

// Item is an immutable snapshot of a product at order time.
type Item struct {
	ID          string   `json:"id"`
	ProductID   string   `json:"productId"`
	Title       string   `json:"title"`
	Images      []string `json:"images"`
	Quantity    int      `json:"quantity"`
	Price       float64  `json:"price"`
	Weight      float64  `json:"weight"`
	TotalWeight float64  `json:"totalWeight"`
}

// LineTotal is price per kg times quantity times per-unit weight.
func (it Item) LineTotal() float64 {
	return it.Price * float64(it.Quantity) * it.Weight
}

type Order struct {
	ID               string    `json:"orderId"`
	OrderNumber      string    `json:"orderNumber"`
	UserID           string    `json:"userId"`
	UserName         string    `json:"userName"`
	UserEmail        string    `json:"userEmail"`
	PhoneNumber      string    `json:"phoneNumber"`
	ShippingAddress  string    `json:"shippingAddress"`
	ShippingMethod   string    `json:"shippingMethod"`
	ShippingCost     float64   `json:"shippingCost"`
	ProductTotal     float64   `json:"productTotal"`
	TotalAmount      float64   `json:"totalAmount"`
	Currency         string    `json:"currency"`
	PaymentStatus    Status    `json:"paymentStatus"`
	Gateway          string    `json:"gateway,omitempty"`
	GatewayOrderID   string    `json:"gatewayOrderId,omitempty"`
	ExpectedDelivery time.Time `json:"expectedDelivery"`
	Items            []Item    `json:"items"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewOrderNumber returns the customer-facing order number for an order placed at t.
func NewOrderNumber(t time.Time) string {
	return fmt.Sprintf("#SVAH%d%s", t.UnixMilli(), uuid.NewString()[:4])
}
