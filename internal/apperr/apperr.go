// Package apperr defines the error taxonomy shared by the checkout, cart and
// payment flows and its mapping onto HTTP status codes.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindPriceMismatch
	KindGateway
	KindSignature
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPriceMismatch:
		return "price_mismatch"
	case KindGateway:
		return "gateway"
	case KindSignature:
		return "signature"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

var (
	// ErrCircuitOpen marks gateway errors raised without calling the provider.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrRejected marks a provider answer that repeating the request cannot change.
	ErrRejected = errors.New("rejected by provider")
)

type Error struct {
	Kind    Kind
	Message string
	// Fields lists the offending request fields for validation errors.
	Fields []string
	// Details carries diagnostic values returned to the client (price mismatch).
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, fields ...string) error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// MissingFields builds the validation error for absent required fields.
func MissingFields(fields ...string) error {
	return &Error{
		Kind:    KindValidation,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

func NotFound(msg string, err error) error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

func PriceMismatch(server, client, difference, percent float64) error {
	return &Error{
		Kind:    KindPriceMismatch,
		Message: "price verification failed",
		Details: map[string]any{
			"backendCalculation":   server,
			"frontendSubmitted":    client,
			"difference":           difference,
			"percentageDifference": fmt.Sprintf("%.4f%%", percent),
		},
	}
}

func Gateway(provider string, err error) error {
	return &Error{Kind: KindGateway, Message: provider + " request failed", Err: err}
}

// GatewayRejected reports a provider that refused the request with a 4xx
// status. Only 408 and 429 stay retryable.
func GatewayRejected(provider string, status int, description string) error {
	e := &Error{Kind: KindGateway, Message: provider + ": " + description}
	if status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		e.Err = fmt.Errorf("status %d: %w", status, ErrRejected)
	}
	return e
}

func Signature(msg string) error {
	return &Error{Kind: KindSignature, Message: msg}
}

func Conflict(msg string, err error) error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the same request may succeed later.
func Retryable(err error) bool {
	return KindOf(err) == KindGateway && !errors.Is(err, ErrRejected)
}

// HTTPStatus maps err onto a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindPriceMismatch, KindSignature:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindGateway:
		switch {
		case errors.Is(err, ErrCircuitOpen):
			return http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}
