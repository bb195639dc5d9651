// Package payment authorizes and captures order payments.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrDeclined        = errors.New("payment declined")
	ErrUnavailable     = errors.New("payment gateway unavailable")
	ErrInvalidAmount   = errors.New("payment amount must be positive")
	ErrUnknownHandle   = errors.New("unknown authorization handle")
	ErrAlreadyCanceled = errors.New("authorization was canceled")
)

// OrderSummary is the part of the order the gateway records with a payment.
type OrderSummary struct {
	OrderID    string   `json:"order_id,omitempty"`
	PlanID     string   `json:"plan_id"`
	Minutes    int      `json:"minutes"`
	AddOnIDs   []string `json:"add_on_ids"`
	PromoCode  string   `json:"promo_code,omitempty"`
	IsGuest    bool     `json:"is_guest"`
	Total      string   `json:"total"`
	CustomerID string   `json:"customer_id,omitempty"`
}

type AuthorizeRequest struct {
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	PaymentMethod string
	// IdempotencyKey makes a retried authorization return the first result.
	IdempotencyKey string
	Order          OrderSummary
}

// Authorization is an opaque handle to funds held for an order.
type Authorization struct {
	Handle string `json:"handle"`
}

type ConfirmRequest struct {
	Handle string
	Order  OrderSummary
}

// Gateway must treat Confirm as idempotent per handle.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error)
	Confirm(ctx context.Context, req ConfirmRequest) error
	Cancel(ctx context.Context, handle string) error
}
