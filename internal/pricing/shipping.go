// Package pricing holds the currency conversion and price arithmetic used to
// re-validate client-submitted totals.
package pricing

import (
	"math"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
)

type Mode string

const (
	ModeAir  Mode = "air"
	ModeShip Mode = "ship"
)

// Bases are the per-kg shipping rates in the quote currency (INR).
type Bases struct {
	Air  float64
	Ship float64
}

var DefaultBases = Bases{Air: 1000, Ship: 700}

// ShippingCost converts the per-kg base for mode into the base currency using
// rate (quote units per base unit) and multiplies by totalWeight.
func (b Bases) ShippingCost(totalWeight float64, mode Mode, rate float64) (float64, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, apperr.Validation("invalid conversion rate")
	}
	if totalWeight < 0 || math.IsNaN(totalWeight) {
		return 0, apperr.Validation("invalid total weight")
	}

	switch mode {
	case ModeAir:
		return totalWeight * (b.Air / rate), nil
	case ModeShip:
		return totalWeight * (b.Ship / rate), nil
	default:
		return 0, apperr.Validation("invalid shipping method", "shipThrough")
	}
}

// ShippingMethodName is the label stored on the order.
func ShippingMethodName(mode Mode) string {
	if mode == ModeAir {
		return "airline"
	}
	return string(mode)
}

// IsPriceValid accepts client when it is within tolerancePercent of server.
// A zero server total only matches a zero client total.
func IsPriceValid(server, client, tolerancePercent float64) bool {
	if server == 0 {
		return client == 0
	}
	_, pct := Difference(server, client)
	return pct <= tolerancePercent
}

// Difference returns the absolute delta and the delta as a percentage of server.
func Difference(server, client float64) (float64, float64) {
	diff := math.Abs(server - client)
	if server == 0 {
		if diff == 0 {
			return 0, 0
		}
		return diff, math.Inf(1)
	}
	return diff, diff / math.Abs(server) * 100
}
