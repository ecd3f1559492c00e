package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/payment"
)

type intentRequest struct {
	Amount json.Number `json:"amount"`
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := req.Amount.Int64()
	if err != nil {
		h.writeError(w, r, apperr.Validation("invalid amount", "amount"))
		return
	}

	o, err := h.payments.CreateIntent(r.Context(), amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

type verifyRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`

	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (v verifyRequest) normalized() payment.VerifyRequest {
	return payment.VerifyRequest{
		GatewayOrderID:   firstNonEmpty(v.GatewayOrderID, v.RazorpayOrderID),
		GatewayPaymentID: firstNonEmpty(v.GatewayPaymentID, v.RazorpayPaymentID),
		Signature:        firstNonEmpty(v.Signature, v.RazorpaySignature),
	}
}

// VerifyPayment accepts the gateway callback as JSON or as a form post and
// redirects the browser to the completion page once the order is paid.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			h.writeError(w, r, apperr.Validation("invalid form body"))
			return
		}
		req = verifyRequest{
			GatewayOrderID:    r.PostForm.Get("gatewayOrderId"),
			GatewayPaymentID:  r.PostForm.Get("gatewayPaymentId"),
			Signature:         r.PostForm.Get("signature"),
			RazorpayOrderID:   r.PostForm.Get("razorpay_order_id"),
			RazorpayPaymentID: r.PostForm.Get("razorpay_payment_id"),
			RazorpaySignature: r.PostForm.Get("razorpay_signature"),
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.payments.Verify(r.Context(), req.normalized()); err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, h.frontendURL+"/complete-payment", http.StatusFound)
}

type declineRequest struct {
	GatewayOrderID    string `json:"gatewayOrderId"`
	GatewayPaymentID  string `json:"gatewayPaymentId"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
}

func (h *Handler) ReportPaymentFailure(w http.ResponseWriter, r *http.Request) {
	var req declineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.payments.ReportDecline(r.Context(), payment.DeclineRequest{
		GatewayOrderID:   firstNonEmpty(req.GatewayOrderID, req.RazorpayOrderID),
		GatewayPaymentID: firstNonEmpty(req.GatewayPaymentID, req.RazorpayPaymentID),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Payment marked as failed", "orderId": res.OrderID})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
