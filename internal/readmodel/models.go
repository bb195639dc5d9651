package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

type CustomerReadModel struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// OrderReadModel is the persisted order record served to lookups and the admin dashboard.
type OrderReadModel struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id,omitempty"`
	IsGuest         bool              `json:"is_guest"`
	GuestEmail      string            `json:"guest_email,omitempty"`
	Customer        CustomerReadModel `json:"customer_info"`
	PlanID          string            `json:"plan_id"`
	PlanName        string            `json:"plan_name"`
	FileName        string            `json:"file_name"`
	DurationMinutes int               `json:"duration"`
	AddOns          []string          `json:"add_ons"`
	PromoCode       string            `json:"promo_code,omitempty"`
	Discount        decimal.Decimal   `json:"discount"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	DiscountAmount  decimal.Decimal   `json:"discount_amount"`
	Total           decimal.Decimal   `json:"total_price"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	PaymentRef      string            `json:"payment_ref,omitempty"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Copy returns a deep copy so callers cannot mutate stored state.
func (o *OrderReadModel) Copy() *OrderReadModel {
	c := *o
	c.AddOns = append([]string{}, o.AddOns...)
	return &c
}
