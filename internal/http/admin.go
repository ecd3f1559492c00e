package httpapi

import (
	"net/http"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/sale"
)

type chargeRequest struct {
	Charge *float64 `json:"charge"`
}

func (h *Handler) SetDeliveryCharge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Charge == nil {
		h.writeError(w, r, apperr.MissingFields("charge"))
		return
	}

	c, err := h.charges.Set(r.Context(), *req.Charge)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Delivery charge updated", "data": c})
}

func (h *Handler) GetDeliveryCharge(w http.ResponseWriter, r *http.Request) {
	c, err := h.charges.Get(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Delivery charge fetched", "data": c})
}

func (h *Handler) SubmitSale(w http.ResponseWriter, r *http.Request) {
	var lead sale.Lead
	if err := decodeJSON(w, r, &lead); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.leads.Create(r.Context(), &lead); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Sale details submitted", "data": lead})
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leads.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Sales fetched", "data": leads})
}
