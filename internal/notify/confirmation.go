package notify

import (
	"strconv"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
)

const confirmationSubject = "Order Confirmation"

// OrderConfirmation is the payload the mail service renders for one recipient.
type OrderConfirmation struct {
	OrderID          string        `json:"orderId"`
	OrderNumber      string        `json:"orderNumber"`
	OrderDate        string        `json:"orderDate"`
	CustomerName     string        `json:"customerName"`
	Recipient        string        `json:"recipient"`
	Subject          string        `json:"subject"`
	TotalAmount      float64       `json:"totalAmount"`
	Currency         string        `json:"currency"`
	PaymentStatus    string        `json:"paymentStatus"`
	ShippingMethod   string        `json:"shippingMethod"`
	ExpectedDelivery string        `json:"expectedDelivery"`
	DeliveryAddress  string        `json:"deliveryAddress"`
	Items            []DisplayItem `json:"items"`

	recipients []string
}

type DisplayItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    string  `json:"quantity"`
}

// Confirmation builds the message for o, addressed to the customer and to opsEmail.
func Confirmation(o order.Order, opsEmail string) OrderConfirmation {
	c := OrderConfirmation{
		OrderID:          o.ID,
		OrderNumber:      o.OrderNumber,
		OrderDate:        o.CreatedAt.Format("2006-01-02"),
		CustomerName:     o.UserName,
		Subject:          confirmationSubject,
		TotalAmount:      o.TotalAmount,
		Currency:         o.Currency,
		PaymentStatus:    o.PaymentStatus.Display(),
		ShippingMethod:   shippingLabel(o.ShippingMethod),
		ExpectedDelivery: o.ExpectedDelivery.Format("2006-01-02"),
		DeliveryAddress:  o.ShippingAddress,
		Items:            make([]DisplayItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		c.Items = append(c.Items, DisplayItem{
			Name:        it.Title,
			Description: strconv.FormatFloat(it.TotalWeight, 'f', -1, 64) + "kg",
			Price:       it.LineTotal(),
			Quantity:    strconv.Itoa(it.Quantity),
		})
	}

	if o.UserEmail != "" {
		c.recipients = append(c.recipients, o.UserEmail)
	}
	if opsEmail != "" && opsEmail != o.UserEmail {
		c.recipients = append(c.recipients, opsEmail)
	}
	return c
}

// Recipients lists every address the confirmation is sent to.
func (c OrderConfirmation) Recipients() []string { return c.recipients }

func shippingLabel(method string) string {
	switch method {
	case "airline":
		return "Air Shipping"
	case "ship":
		return "Sea Shipping"
	case order.ShippingDomestic:
		return "Domestic Shipping"
	default:
		return method
	}
}
