package cart

import "time"

// Line is one (product, weight-variant) entry in a user's cart.
type Line struct {
	ID        string    `json:"cartId"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a cart line joined with the current product record.
type Item struct {
	CartID    string   `json:"cartId"`
	ProductID string   `json:"productId"`
	Title     string   `json:"title"`
	Price     float64  `json:"price"`
	Images    []string `json:"images"`
	Stock     int      `json:"stock"`
	Quantity  int      `json:"quantity"`
	Weight    float64  `json:"weight"`
}

type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
)

// Adjustment is either a one-step Action or an absolute Value.
type Adjustment struct {
	Action Action
	Value  int
}
