package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/readmodel"
	"go.uber.org/zap"
)

type Projector struct {
	readStore store.OrderReadStore
	logger    *zap.Logger
}

func NewProjector(readStore store.OrderReadStore, logger *zap.Logger) *Projector {
	return &Projector{readStore: readStore, logger: logger}
}

// HandleEvent decodes a stored event and applies it to the order read model.
// It matches the kafka.MessageHandler signature.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	p.logger.Debug("received event",
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID))

	if event.AggregateType != order.AggregateType {
		return nil
	}
	return p.handleOrderEvent(ctx, event)
}

// statusRank orders statuses so redelivered events never move an order backwards.
var statusRank = map[order.Status]int{
	order.StatusPending:    0,
	order.StatusPaid:       1,
	order.StatusProcessing: 2,
	order.StatusCompleted:  3,
	order.StatusFailed:     3,
}

func (p *Projector) handleOrderEvent(ctx context.Context, event store.Event) error {
	switch event.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.GetOrder(ctx, e.OrderID)
		if err == nil {
			p.logger.Debug("order already projected", zap.String("order_id", e.OrderID))
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return p.readStore.SaveOrder(ctx, placedReadModel(e))

	case order.EventOrderPaid:
		var e order.OrderPaid
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.advance(ctx, e.OrderID, order.StatusPaid, e.PaidAt, func(o *readmodel.OrderReadModel) {
			o.PaymentRef = e.PaymentRef
		})

	case order.EventOrderProcessingStarted:
		var e order.OrderProcessingStarted
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.advance(ctx, e.OrderID, order.StatusProcessing, e.StartedAt, nil)

	case order.EventOrderCompleted:
		var e order.OrderCompleted
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.advance(ctx, e.OrderID, order.StatusCompleted, e.CompletedAt, nil)

	case order.EventOrderFailed:
		var e order.OrderFailed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.advance(ctx, e.OrderID, order.StatusFailed, e.FailedAt, func(o *readmodel.OrderReadModel) {
			o.FailureReason = e.Reason
		})
	}

	return nil
}

func (p *Projector) advance(ctx context.Context, orderID string, status order.Status, at time.Time, extra func(*readmodel.OrderReadModel)) error {
	err := p.readStore.UpdateOrder(ctx, orderID, func(o *readmodel.OrderReadModel) {
		if statusRank[order.Status(o.Status)] >= statusRank[status] {
			return
		}
		o.Status = string(status)
		o.UpdatedAt = at
		if extra != nil {
			extra(o)
		}
	})
	if errors.Is(err, store.ErrNotFound) {
		p.logger.Warn("status event for unknown order",
			zap.String("order_id", orderID),
			zap.String("status", string(status)))
		return nil
	}
	return err
}

func placedReadModel(e order.OrderPlaced) *readmodel.OrderReadModel {
	addOns := make([]string, len(e.AddOns))
	for i, a := range e.AddOns {
		addOns[i] = a.ID
	}
	return &readmodel.OrderReadModel{
		ID:         e.OrderID,
		UserID:     e.UserID,
		IsGuest:    e.IsGuest,
		GuestEmail: e.GuestEmail,
		Customer: readmodel.CustomerReadModel{
			Name:    e.Customer.Name,
			Email:   e.Customer.Email,
			Company: e.Customer.Company,
			Phone:   e.Customer.Phone,
		},
		PlanID:          e.PlanID,
		PlanName:        e.PlanName,
		FileName:        e.File.Name,
		DurationMinutes: e.DurationMinutes,
		AddOns:          addOns,
		PromoCode:       e.PromoCode,
		Discount:        e.Discount,
		Subtotal:        e.Subtotal,
		DiscountAmount:  e.DiscountAmount,
		Total:           e.Total,
		Currency:        e.Currency,
		Status:          string(order.StatusPending),
		PaymentRef:      e.PaymentRef,
		CreatedAt:       e.PlacedAt,
		UpdatedAt:       e.PlacedAt,
	}
}
