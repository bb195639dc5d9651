package pricing

import (
	"testing"

	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

// ============================================
// Compute Tests
// ============================================

func TestCompute_PlanOnly(t *testing.T) {
	b, err := Compute(10, d("0.50"), nil, decimal.Zero)

	require.NoError(t, err)
	assertAmount(t, "5", b.BasePrice)
	assertAmount(t, "0", b.AddOnTotal)
	assertAmount(t, "5", b.Subtotal)
	assertAmount(t, "0", b.DiscountAmount)
	assertAmount(t, "5", b.Total)
	assert.Equal(t, "5.00", b.Display().Total)
}

func TestCompute_WithAddOn(t *testing.T) {
	addOns := []catalog.AddOn{{ID: "timestamps", Rate: d("0.10")}}

	b, err := Compute(10, d("0.50"), addOns, decimal.Zero)

	require.NoError(t, err)
	assertAmount(t, "1", b.AddOnTotal)
	assertAmount(t, "6", b.Subtotal)
	assertAmount(t, "6", b.Total)
}

func TestCompute_WithAddOnAndDiscount(t *testing.T) {
	addOns := []catalog.AddOn{{ID: "timestamps", Rate: d("0.10")}}

	b, err := Compute(10, d("0.50"), addOns, d("0.2"))

	require.NoError(t, err)
	assertAmount(t, "1.2", b.DiscountAmount)
	assertAmount(t, "4.8", b.Total)
	assert.Equal(t, "1.20", b.Display().DiscountAmount)
	assert.Equal(t, "4.80", b.Display().Total)
}

func TestCompute_ZeroDurationOrRate(t *testing.T) {
	addOns := []catalog.AddOn{{ID: "rush", Rate: d("0.50")}}

	b, err := Compute(0, d("1.75"), addOns, d("0.1"))
	require.NoError(t, err)
	assertAmount(t, "0", b.Total)

	b, err = Compute(30, decimal.Zero, nil, decimal.Zero)
	require.NoError(t, err)
	assertAmount(t, "0", b.Total)
}

func TestCompute_DoesNotRoundIntermediates(t *testing.T) {
	addOns := []catalog.AddOn{
		{ID: "a", Rate: d("0.333")},
		{ID: "b", Rate: d("0.333")},
		{ID: "c", Rate: d("0.333")},
	}

	b, err := Compute(7, d("0.005"), addOns, decimal.Zero)

	require.NoError(t, err)
	// 7*0.005 + 3*(7*0.333) = 0.035 + 6.993
	assertAmount(t, "7.028", b.Total)
	assert.Equal(t, "7.03", b.Display().Total)
}

func TestCompute_RejectsDiscountOutsideRange(t *testing.T) {
	for _, frac := range []string{"-0.01", "1", "1.5"} {
		_, err := Compute(10, d("1"), nil, d(frac))
		assert.ErrorIs(t, err, ErrInvalidDiscount, "fraction %s", frac)
	}
}

func TestCompute_RejectsNegativeInputs(t *testing.T) {
	_, err := Compute(-1, d("1"), nil, decimal.Zero)
	assert.ErrorIs(t, err, ErrNegativeDuration)

	_, err = Compute(1, d("-1"), nil, decimal.Zero)
	assert.ErrorIs(t, err, ErrNegativeRate)
}

// P1: total = max(0, subtotal - subtotal*discount) for a grid of inputs.
func TestCompute_TotalProperty(t *testing.T) {
	rates := []string{"0", "0.35", "0.50", "1.75"}
	addOnSets := [][]catalog.AddOn{
		nil,
		{{ID: "timestamps", Rate: d("0.10")}},
		{{ID: "timestamps", Rate: d("0.10")}, {ID: "rush", Rate: d("0.50")}},
	}
	discounts := []string{"0", "0.15", "0.5", "0.99"}

	for minutes := 0; minutes <= 120; minutes += 17 {
		for _, rate := range rates {
			for _, addOns := range addOnSets {
				for _, disc := range discounts {
					first, err := Compute(minutes, d(rate), addOns, d(disc))
					require.NoError(t, err)
					second, err := Compute(minutes, d(rate), addOns, d(disc))
					require.NoError(t, err)

					assert.True(t, first.Total.Equal(second.Total))
					want := decimal.Max(decimal.Zero, first.Subtotal.Sub(first.Subtotal.Mul(d(disc))))
					assert.True(t, want.Equal(first.Total))
					assert.False(t, first.Total.IsNegative())
				}
			}
		}
	}
}

// ============================================
// Helper Tests
// ============================================

func TestFractionFromPercent(t *testing.T) {
	f, err := FractionFromPercent(d("20"))
	require.NoError(t, err)
	assertAmount(t, "0.2", f)

	_, err = FractionFromPercent(d("100"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = FractionFromPercent(d("-5"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestMinutesFromSeconds(t *testing.T) {
	assert.Equal(t, 0, MinutesFromSeconds(0))
	assert.Equal(t, 1, MinutesFromSeconds(0.4))
	assert.Equal(t, 1, MinutesFromSeconds(60))
	assert.Equal(t, 2, MinutesFromSeconds(60.01))
	assert.Equal(t, 10, MinutesFromSeconds(599))
	assert.Equal(t, 0, MinutesFromSeconds(-3))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(480), MinorUnits(d("4.8")))
	assert.Equal(t, int64(703), MinorUnits(d("7.028")))
	assert.Equal(t, int64(1), MinorUnits(d("0.005")))
}
