package projection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProjector() (*Projector, *mocks.MockOrderReadStore) {
	readStore := mocks.NewMockOrderReadStore()
	projector := NewProjector(readStore, zap.NewNop())
	return projector, readStore
}

func makeEvent(aggregateType, eventType string, data any) []byte {
	jsonData, _ := json.Marshal(data)
	event := store.Event{
		ID:            "event-123",
		AggregateID:   "order-123",
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
	}
	result, _ := json.Marshal(event)
	return result
}

func placedEvent() order.OrderPlaced {
	return order.OrderPlaced{
		OrderID:         "order-123",
		IsGuest:         true,
		GuestEmail:      "ada@example.com",
		Customer:        order.Customer{Name: "Ada", Email: "Ada@Example.com"},
		PlanID:          "standard",
		PlanName:        "Standard",
		File:            order.AudioFile{Name: "interview.mp3", Size: 4096},
		DurationMinutes: 10,
		AddOns:          []order.AddOnLine{{ID: "timestamps", Name: "Timestamps", Rate: decimal.RequireFromString("0.10")}},
		PromoCode:       "SAVE20",
		Discount:        decimal.RequireFromString("0.2"),
		Subtotal:        decimal.RequireFromString("11"),
		DiscountAmount:  decimal.RequireFromString("2.2"),
		Total:           decimal.RequireFromString("8.8"),
		Currency:        "USD",
		PlacedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func project(t *testing.T, p *Projector, eventType string, data any) {
	t.Helper()
	require.NoError(t, p.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, eventType, data)))
}

// ============================================
// Order Event Tests
// ============================================

func TestProjector_HandleOrderPlaced(t *testing.T) {
	projector, readStore := newTestProjector()

	project(t, projector, order.EventOrderPlaced, placedEvent())

	o, err := readStore.GetOrder(context.Background(), "order-123")
	require.NoError(t, err)
	assert.Equal(t, "pending", o.Status)
	assert.Equal(t, "ada@example.com", o.GuestEmail)
	assert.Equal(t, "interview.mp3", o.FileName)
	assert.Equal(t, []string{"timestamps"}, o.AddOns)
	assert.Equal(t, "8.8", o.Total.String())
	assert.Equal(t, "Ada", o.Customer.Name)
}

func TestProjector_StatusLifecycle(t *testing.T) {
	projector, readStore := newTestProjector()
	paidAt := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	project(t, projector, order.EventOrderPlaced, placedEvent())
	project(t, projector, order.EventOrderPaid, order.OrderPaid{OrderID: "order-123", PaymentRef: "pi_1", PaidAt: paidAt})
	project(t, projector, order.EventOrderProcessingStarted, order.OrderProcessingStarted{OrderID: "order-123"})
	project(t, projector, order.EventOrderCompleted, order.OrderCompleted{OrderID: "order-123"})

	o, err := readStore.GetOrder(context.Background(), "order-123")
	require.NoError(t, err)
	assert.Equal(t, "completed", o.Status)
	assert.Equal(t, "pi_1", o.PaymentRef)
}

func TestProjector_HandleOrderFailed(t *testing.T) {
	projector, readStore := newTestProjector()

	project(t, projector, order.EventOrderPlaced, placedEvent())
	project(t, projector, order.EventOrderFailed, order.OrderFailed{OrderID: "order-123", Reason: "capture failed"})

	o, err := readStore.GetOrder(context.Background(), "order-123")
	require.NoError(t, err)
	assert.Equal(t, "failed", o.Status)
	assert.Equal(t, "capture failed", o.FailureReason)
}

func TestProjector_RedeliveryDoesNotRegress(t *testing.T) {
	projector, readStore := newTestProjector()

	project(t, projector, order.EventOrderPlaced, placedEvent())
	project(t, projector, order.EventOrderPaid, order.OrderPaid{OrderID: "order-123", PaymentRef: "pi_1"})
	project(t, projector, order.EventOrderProcessingStarted, order.OrderProcessingStarted{OrderID: "order-123"})
	project(t, projector, order.EventOrderPaid, order.OrderPaid{OrderID: "order-123", PaymentRef: "pi_1"})
	project(t, projector, order.EventOrderPlaced, placedEvent())

	o, err := readStore.GetOrder(context.Background(), "order-123")
	require.NoError(t, err)
	assert.Equal(t, "processing", o.Status)
}

func TestProjector_StatusForUnknownOrderIsSkipped(t *testing.T) {
	projector, readStore := newTestProjector()

	project(t, projector, order.EventOrderPaid, order.OrderPaid{OrderID: "ghost"})

	_, err := readStore.GetOrder(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProjector_IgnoresOtherAggregates(t *testing.T) {
	projector, readStore := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, makeEvent("Session", "Started", map[string]string{}))

	require.NoError(t, err)
	assert.Zero(t, readStore.Saved)
}

func TestProjector_InvalidJSON(t *testing.T) {
	projector, _ := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, []byte("not json"))

	assert.Error(t, err)
}

func TestProjector_WriteErrorPropagates(t *testing.T) {
	projector, readStore := newTestProjector()
	readStore.WriteErr = errors.New("db down")

	err := projector.HandleEvent(context.Background(), nil, makeEvent(order.AggregateType, order.EventOrderPlaced, placedEvent()))

	assert.Error(t, err)
}
