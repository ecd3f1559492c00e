// Package sale captures farmers' offers to sell produce for the operations team.
package sale

import (
	"fmt"
	"strings"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
)

const (
	MethodOrganic   = "Organic"
	MethodNatural   = "Natural Farming"
	MethodInorganic = "Inorganic"

	ConditionFresh = "Fresh"
	ConditionDried = "Dried"
)

const dateLayout = "2006-01-02"

// Lead is one submitted sale offer. Quantity is free text with a unit ("500 kg", "2 MT").
type Lead struct {
	ID               string    `json:"id"`
	FarmerName       string    `json:"farmerName"`
	PattaNumber      string    `json:"pattaNumber"`
	State            string    `json:"state"`
	Mandal           string    `json:"mandal"`
	RevenueVillage   string    `json:"revenueVillage"`
	Pincode          string    `json:"pincode"`
	MobileNumber     string    `json:"mobileNumber"`
	CropName         string    `json:"cropName"`
	FarmingMethod    string    `json:"farmingMethod"`
	HarvestingDate   string    `json:"harvestingDate"`
	ProductName      string    `json:"productName"`
	ProductForm      string    `json:"productForm"`
	ProductCondition string    `json:"productCondition"`
	Quantity         string    `json:"quantity"`
	PricePerKg       float64   `json:"pricePerKg"`
	Message          string    `json:"message"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Validate checks required fields, enums and number formats and returns the
// parsed harvesting date.
func (l *Lead) Validate() (time.Time, error) {
	required := []struct{ name, value string }{
		{"farmerName", l.FarmerName},
		{"pattaNumber", l.PattaNumber},
		{"state", l.State},
		{"mandal", l.Mandal},
		{"revenueVillage", l.RevenueVillage},
		{"pincode", l.Pincode},
		{"mobileNumber", l.MobileNumber},
		{"cropName", l.CropName},
		{"farmingMethod", l.FarmingMethod},
		{"harvestingDate", l.HarvestingDate},
		{"productName", l.ProductName},
		{"productForm", l.ProductForm},
		{"productCondition", l.ProductCondition},
		{"quantity", l.Quantity},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if l.PricePerKg == 0 {
		missing = append(missing, "pricePerKg")
	}
	if len(missing) > 0 {
		return time.Time{}, apperr.MissingFields(missing...)
	}

	switch l.FarmingMethod {
	case MethodOrganic, MethodNatural, MethodInorganic:
	default:
		return time.Time{}, apperr.Validation(fmt.Sprintf("invalid farmingMethod %q", l.FarmingMethod), "farmingMethod")
	}
	switch l.ProductCondition {
	case ConditionFresh, ConditionDried:
	default:
		return time.Time{}, apperr.Validation(fmt.Sprintf("invalid productCondition %q", l.ProductCondition), "productCondition")
	}
	if !digits(l.Pincode, 6) {
		return time.Time{}, apperr.Validation("pincode must be 6 digits", "pincode")
	}
	if !digits(l.MobileNumber, 10) {
		return time.Time{}, apperr.Validation("mobileNumber must be 10 digits", "mobileNumber")
	}
	if l.PricePerKg < 0 {
		return time.Time{}, apperr.Validation("pricePerKg must be positive", "pricePerKg")
	}

	harvested, err := ParseDate(l.HarvestingDate)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid harvestingDate", "harvestingDate")
	}
	return harvested, nil
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(24 * time.Hour), nil
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
