package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/cart"
)

type addToCartRequest struct {
	UserID    string  `json:"userId"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Weight    float64 `json:"weight"`
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	line, merged, err := h.cart.AddItem(r.Context(), cart.AddRequest{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Weight:    req.Weight,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	msg := "Item added to cart"
	if merged {
		msg = "Cart item quantity updated"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg, "data": line})
}

func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.cart.RemoveItem(r.Context(), q.Get("userId"), q.Get("cartItemId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Item removed from cart"})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.cart.List(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Cart fetched", "data": items})
}

type adjustRequest struct {
	Action      cart.Action `json:"action"`
	NewQuantity int         `json:"newQuantity"`
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	line, err := h.cart.AdjustQuantity(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "cartItemId"),
		cart.Adjustment{Action: req.Action, Value: req.NewQuantity})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Quantity updated", "data": line})
}
