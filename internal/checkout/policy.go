// Package checkout turns a cart submission into a persisted order, re-pricing
// every line server-side before anything is written.
package checkout

import (
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
)

type PriceSource int

const (
	// ServerCanonical prices every line from the catalog and ignores declared prices.
	ServerCanonical PriceSource = iota
	// ClientDeclared also rejects lines whose declared price drifts from the catalog.
	ClientDeclared
)

type ClearOn int

const (
	ClearOnCreate ClearOn = iota
	ClearOnPaymentSuccess
)

type ShippingRule int

const (
	ShippingByWeight ShippingRule = iota
	ShippingFlatDomestic
)

// Policy selects how Place prices, ships and settles an order.
type Policy struct {
	Name           string
	PriceSource    PriceSource
	ToleranceCheck bool
	ClearCartOn    ClearOn
	Shipping       ShippingRule
	Gateway        string
	Currency       string
}

var International = Policy{
	Name:           "international",
	PriceSource:    ServerCanonical,
	ToleranceCheck: true,
	ClearCartOn:    ClearOnCreate,
	Shipping:       ShippingByWeight,
	Gateway:        order.GatewayPayPal,
	Currency:       order.CurrencyUSD,
}

var Domestic = Policy{
	Name:           "domestic",
	PriceSource:    ServerCanonical,
	ToleranceCheck: false,
	ClearCartOn:    ClearOnPaymentSuccess,
	Shipping:       ShippingFlatDomestic,
	Gateway:        order.GatewayRazorpay,
	Currency:       order.CurrencyINR,
}
