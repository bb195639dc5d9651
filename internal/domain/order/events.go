package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced            = "OrderPlaced"
	EventOrderPaid              = "OrderPaid"
	EventOrderProcessingStarted = "OrderProcessingStarted"
	EventOrderCompleted         = "OrderCompleted"
	EventOrderFailed            = "OrderFailed"
)

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type AudioFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// AddOnLine is an add-on as priced at order time.
type AddOnLine struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

// OrderPlaced carries the full order snapshot.
type OrderPlaced struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id,omitempty"`
	IsGuest         bool            `json:"is_guest"`
	GuestEmail      string          `json:"guest_email,omitempty"`
	Customer        Customer        `json:"customer"`
	PlanID          string          `json:"plan_id"`
	PlanName        string          `json:"plan_name"`
	PlanRate        decimal.Decimal `json:"plan_rate"`
	File            AudioFile       `json:"file"`
	DurationMinutes int             `json:"duration_minutes"`
	AddOns          []AddOnLine     `json:"add_ons"`
	PromoCode       string          `json:"promo_code,omitempty"`
	Discount        decimal.Decimal `json:"discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	PaymentRef      string          `json:"payment_ref,omitempty"`
	PlacedAt        time.Time       `json:"placed_at"`
}

type OrderPaid struct {
	OrderID    string          `json:"order_id"`
	PaymentRef string          `json:"payment_ref"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
}

type OrderProcessingStarted struct {
	OrderID   string    `json:"order_id"`
	StartedAt time.Time `json:"started_at"`
}

type OrderCompleted struct {
	OrderID     string    `json:"order_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type OrderFailed struct {
	OrderID  string    `json:"order_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
