// Package notification sends the receipt e-mail once an order is paid.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/email"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderSource loads the current state of an order. order.Service reads it
// from the event store, so a receipt never waits on the read model.
type OrderSource interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
}

type ReceiptSender interface {
	SendReceipt(to string, r email.Receipt) error
}

// Handler processes events for sending notifications
type Handler struct {
	sender ReceiptSender
	orders OrderSource
	logger *zap.Logger
}

func NewHandler(sender ReceiptSender, orders OrderSource, logger *zap.Logger) *Handler {
	return &Handler{sender: sender, orders: orders, logger: logger}
}

// HandleEvent processes an event from Kafka or Kinesis
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.EventType != order.EventOrderPaid {
		return nil
	}
	return h.handleOrderPaid(ctx, event)
}

func (h *Handler) handleOrderPaid(ctx context.Context, event store.Event) error {
	var e order.OrderPaid
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("failed to unmarshal OrderPaid: %w", err)
	}

	o, err := h.orders.Get(ctx, e.OrderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		h.logger.Warn("paid order not found", zap.String("order_id", e.OrderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", e.OrderID, err)
	}

	to := o.Customer.Email
	if o.IsGuest && o.GuestEmail != "" {
		to = o.GuestEmail
	}
	if to == "" {
		h.logger.Warn("order has no e-mail address", zap.String("order_id", o.ID))
		return nil
	}

	if err := h.sender.SendReceipt(to, BuildReceipt(o)); err != nil {
		return err
	}

	h.logger.Info("receipt sent", zap.String("order_id", o.ID))
	return nil
}

// BuildReceipt formats an order for the receipt template.
func BuildReceipt(o *order.Order) email.Receipt {
	minutes := decimal.NewFromInt(int64(o.DurationMinutes))

	lines := make([]email.ReceiptLine, 0, len(o.AddOns)+1)
	lines = append(lines, email.ReceiptLine{
		Name:   o.PlanName,
		Rate:   pricing.FormatAmount(o.PlanRate),
		Amount: pricing.FormatAmount(o.PlanRate.Mul(minutes)),
	})
	for _, a := range o.AddOns {
		lines = append(lines, email.ReceiptLine{
			Name:   a.Name,
			Rate:   pricing.FormatAmount(a.Rate),
			Amount: pricing.FormatAmount(a.Rate.Mul(minutes)),
		})
	}

	return email.Receipt{
		OrderID:      o.ID,
		CustomerName: o.Customer.Name,
		PlanName:     o.PlanName,
		Minutes:      o.DurationMinutes,
		FileName:     o.File.Name,
		Lines:        lines,
		Subtotal:     pricing.FormatAmount(o.Subtotal),
		PromoCode:    o.PromoCode,
		Discount:     pricing.FormatAmount(o.DiscountAmount),
		Total:        pricing.FormatAmount(o.Total),
		Currency:     o.Currency,
		Guest:        o.IsGuest,
	}
}
