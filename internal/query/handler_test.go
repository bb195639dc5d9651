package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/transcribe-checkout/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueryHandler() (*Handler, *mocks.MockOrderReadStore) {
	readStore := mocks.NewMockOrderReadStore()
	handler := NewHandler(readStore, zap.NewNop())
	return handler, readStore
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func guestOrder(id, email string) *OrderReadModel {
	return &OrderReadModel{
		ID:         id,
		IsGuest:    true,
		GuestEmail: email,
		PlanID:     "standard",
		Total:      d("8.8"),
		Status:     "paid",
		CreatedAt:  time.Now(),
	}
}

// ============================================
// Guest Lookup Tests
// ============================================

func TestHandler_LookupGuestOrder_Match(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	readStore.SetOrder(guestOrder("ord-1", "ada@example.com"))

	o, err := handler.LookupGuestOrder(context.Background(), "ord-1", "  ADA@example.com ")

	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, "8.8", o.Total.String())
}

func TestHandler_LookupGuestOrder_EmailMismatch(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	readStore.SetOrder(guestOrder("ord-1", "ada@example.com"))

	o, err := handler.LookupGuestOrder(context.Background(), "ord-1", "eve@example.com")

	assert.ErrorIs(t, err, ErrLookupNotFound)
	assert.Nil(t, o)
}

func TestHandler_LookupGuestOrder_UnknownID(t *testing.T) {
	handler, _ := newTestQueryHandler()

	_, err := handler.LookupGuestOrder(context.Background(), "nope", "ada@example.com")

	assert.ErrorIs(t, err, ErrLookupNotFound)
}

func TestHandler_LookupGuestOrder_SignedInOrderNotExposed(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	o := guestOrder("ord-2", "")
	o.IsGuest = false
	o.UserID = "user-1"
	readStore.SetOrder(o)

	_, err := handler.LookupGuestOrder(context.Background(), "ord-2", "")

	assert.ErrorIs(t, err, ErrLookupNotFound)
}

func TestHandler_LookupGuestOrder_StoreDown(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	readStore.ReadErr = errors.New("connection refused")

	_, err := handler.LookupGuestOrder(context.Background(), "ord-1", "ada@example.com")

	assert.ErrorIs(t, err, ErrLookupUnavailable)
	assert.NotErrorIs(t, err, ErrLookupNotFound)
}

// ============================================
// Listing Tests
// ============================================

func TestHandler_ListOrdersByUser(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	mine := guestOrder("ord-1", "")
	mine.IsGuest, mine.UserID = false, "user-1"
	other := guestOrder("ord-2", "")
	other.IsGuest, other.UserID = false, "user-2"
	readStore.SetOrder(mine)
	readStore.SetOrder(other)

	orders, err := handler.ListOrdersByUser(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-1", orders[0].ID)
}

func TestHandler_ListOrdersByUser_Empty(t *testing.T) {
	handler, _ := newTestQueryHandler()

	orders, err := handler.ListOrdersByUser(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Empty(t, orders)
}

// ============================================
// Analytics Tests
// ============================================

func TestHandler_Analytics(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	paid := guestOrder("a", "a@example.com")
	paid.Discount, paid.DiscountAmount = d("0.2"), d("2.2")
	paid.DurationMinutes = 10

	completed := guestOrder("b", "b@example.com")
	completed.PlanID = "premium"
	completed.Status = "completed"
	completed.Total = d("17.5")
	completed.DurationMinutes = 10

	failed := guestOrder("c", "c@example.com")
	failed.Status = "failed"
	failed.Total = d("100")

	pending := guestOrder("e", "")
	pending.IsGuest, pending.UserID = false, "user-1"
	pending.Status = "pending"

	for _, o := range []*OrderReadModel{paid, completed, failed, pending} {
		readStore.SetOrder(o)
	}

	a, err := handler.Analytics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, a.TotalOrders)
	assert.Equal(t, 3, a.GuestOrders)
	assert.Equal(t, map[string]int{"paid": 1, "completed": 1, "failed": 1, "pending": 1}, a.ByStatus)
	assert.Equal(t, "26.3", a.Revenue.String())
	assert.Equal(t, 1, a.DiscountedOrders)
	assert.Equal(t, "2.2", a.DiscountGiven.String())
	require.Len(t, a.Plans, 2)
	assert.Equal(t, "premium", a.Plans[0].PlanID)
	assert.Equal(t, "17.5", a.Plans[0].Revenue.String())
	assert.Equal(t, "standard", a.Plans[1].PlanID)
	assert.Equal(t, 3, a.Plans[1].Orders)
	assert.Equal(t, "8.8", a.Plans[1].Revenue.String())
}

func TestHandler_Analytics_StoreDown(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	readStore.ReadErr = errors.New("timeout")

	_, err := handler.Analytics(context.Background())

	assert.ErrorIs(t, err, ErrLookupUnavailable)
}
