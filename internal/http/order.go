package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/pricing"
)

type orderItem struct {
	ProductID string  `json:"productId"`
	LegacyID  string  `json:"_id"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Weight    float64 `json:"weight"`
}

type placeOrderRequest struct {
	User             string      `json:"user"`
	PhoneNumber      string      `json:"phoneNumber"`
	ShippingAddress  string      `json:"shippingAddress"`
	TotalAmount      float64     `json:"totalAmount"`
	ShipThrough      string      `json:"shipThrough"`
	Items            []orderItem `json:"items"`
	ExpectedDelivery string      `json:"expectedDelivery"`
	PayPalOrderID    string      `json:"paypalOid"`
	RazorpayOrderID  string      `json:"razorpayOrderId"`
}

func (req placeOrderRequest) toCheckout(sessionID string) checkout.Request {
	items := make([]checkout.Item, 0, len(req.Items))
	for _, it := range req.Items {
		id := it.ProductID
		if id == "" {
			id = it.LegacyID
		}
		items = append(items, checkout.Item{ProductID: id, Price: it.Price, Quantity: it.Quantity, Weight: it.Weight})
	}
	return checkout.Request{
		UserID:           req.User,
		PhoneNumber:      req.PhoneNumber,
		ShippingAddress:  req.ShippingAddress,
		ShipThrough:      pricing.Mode(req.ShipThrough),
		ExpectedDelivery: req.ExpectedDelivery,
		Items:            items,
		TotalAmount:      req.TotalAmount,
		PaymentSessionID: sessionID,
	}
}

func (h *Handler) PlaceInternationalOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.place(w, r, checkout.International, req.toCheckout(req.PayPalOrderID))
}

func (h *Handler) PlaceDomesticOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.place(w, r, checkout.Domestic, req.toCheckout(req.RazorpayOrderID))
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request, p checkout.Policy, req checkout.Request) {
	res, err := h.checkout.Place(r.Context(), p, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"message":       "Order placed successfully",
		"orderId":       res.OrderID,
		"orderNumber":   res.OrderNumber,
		"paymentStatus": res.Status,
		"totalAmount":   res.TotalAmount,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			err = apperr.NotFound("order not found", err)
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": o})
}

func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": orders})
}
