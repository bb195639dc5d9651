// Package pricing computes order totals for transcription orders.
//
// All arithmetic is exact decimal arithmetic. Rounding to cents happens only
// when a Breakdown is displayed or converted to minor units for a payment.
package pricing

import (
	"errors"
	"math"

	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDiscount  = errors.New("discount fraction must be in [0, 1)")
	ErrNegativeDuration = errors.New("duration must not be negative")
	ErrNegativeRate     = errors.New("rate must not be negative")
)

var one = decimal.NewFromInt(1)

// Breakdown is the result of a price computation.
type Breakdown struct {
	BasePrice      decimal.Decimal `json:"base_price"`
	AddOnTotal     decimal.Decimal `json:"add_on_total"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Compute prices durationMinutes of audio at planRate with the given add-ons
// and discount fraction.
func Compute(durationMinutes int, planRate decimal.Decimal, addOns []catalog.AddOn, discount decimal.Decimal) (Breakdown, error) {
	if durationMinutes < 0 {
		return Breakdown{}, ErrNegativeDuration
	}
	if planRate.IsNegative() {
		return Breakdown{}, ErrNegativeRate
	}
	if err := ValidateDiscount(discount); err != nil {
		return Breakdown{}, err
	}

	minutes := decimal.NewFromInt(int64(durationMinutes))
	base := minutes.Mul(planRate)

	addOnTotal := decimal.Zero
	for _, a := range addOns {
		if a.Rate.IsNegative() {
			return Breakdown{}, ErrNegativeRate
		}
		addOnTotal = addOnTotal.Add(a.Rate.Mul(minutes))
	}

	subtotal := base.Add(addOnTotal)
	discountAmount := subtotal.Mul(discount)
	total := decimal.Max(decimal.Zero, subtotal.Sub(discountAmount))

	return Breakdown{
		BasePrice:      base,
		AddOnTotal:     addOnTotal,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Total:          total,
	}, nil
}

// ValidateDiscount rejects fractions outside [0, 1).
func ValidateDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThanOrEqual(one) {
		return ErrInvalidDiscount
	}
	return nil
}

// FractionFromPercent converts a validator percentage (e.g. 20) to a fraction (0.2).
func FractionFromPercent(percent decimal.Decimal) (decimal.Decimal, error) {
	f := percent.Div(decimal.NewFromInt(100))
	if err := ValidateDiscount(f); err != nil {
		return decimal.Zero, err
	}
	return f, nil
}

// MinutesFromSeconds rounds a measured duration up to whole minutes.
func MinutesFromSeconds(seconds float64) int {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int(math.Ceil(seconds / 60))
}

// Display is the Breakdown rounded to cents for presentation.
type Display struct {
	BasePrice      string `json:"base_price"`
	AddOnTotal     string `json:"add_on_total"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	Total          string `json:"total"`
}

func (b Breakdown) Display() Display {
	return Display{
		BasePrice:      FormatAmount(b.BasePrice),
		AddOnTotal:     FormatAmount(b.AddOnTotal),
		Subtotal:       FormatAmount(b.Subtotal),
		DiscountAmount: FormatAmount(b.DiscountAmount),
		Total:          FormatAmount(b.Total),
	}
}

// FormatAmount renders an amount with two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// MinorUnits converts an amount to cents, rounding half away from zero.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
