package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/transcribe-checkout/internal/domain/aggregate"
	"github.com/example/transcribe-checkout/internal/domain/draft"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const AggregateType = "Order"

const maxTransitionAttempts = 2

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidOrder     = errors.New("order is incomplete")
	ErrMissingUser      = errors.New("non-guest order needs a user id")
	ErrPriceMismatch    = errors.New("order total does not match pricing")
	ErrInvalidStatus    = errors.New("invalid order status transition")
	ErrOrderAlreadyPaid = errors.New("order is already paid")
	ErrOrderNotPaid     = errors.New("order must be paid before processing")
	ErrOrderFinished    = errors.New("order is already finished")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusFailed},
	StatusPaid:       {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {}, // terminal state
	StatusFailed:     {}, // terminal state
}

// ParseStatus accepts the lower-case status names.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCompleted || o.Status == StatusFailed:
		return ErrOrderFinished
	case target == StatusPaid:
		return ErrOrderAlreadyPaid
	case o.Status == StatusPending && (target == StatusProcessing || target == StatusCompleted):
		return ErrOrderNotPaid
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

type Order struct {
	ID              string          `json:"id"`
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
	FailureReason   string          `json:"failure_reason,omitempty"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// Aggregate interface implementation
func (o *Order) GetID() string   { return o.ID }
func (o *Order) GetVersion() int { return o.Version }

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.UserID = data.UserID
		o.IsGuest = data.IsGuest
		o.GuestEmail = data.GuestEmail
		o.Customer = data.Customer
		o.PlanID = data.PlanID
		o.PlanName = data.PlanName
		o.PlanRate = data.PlanRate
		o.File = data.File
		o.DurationMinutes = data.DurationMinutes
		o.AddOns = data.AddOns
		o.PromoCode = data.PromoCode
		o.Discount = data.Discount
		o.Subtotal = data.Subtotal
		o.DiscountAmount = data.DiscountAmount
		o.Total = data.Total
		o.Currency = data.Currency
		o.PaymentRef = data.PaymentRef
		o.Status = StatusPending
		o.CreatedAt = data.PlacedAt
		o.UpdatedAt = data.PlacedAt
	case EventOrderPaid:
		var data OrderPaid
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusPaid
		o.PaymentRef = data.PaymentRef
		o.UpdatedAt = data.PaidAt
	case EventOrderProcessingStarted:
		var data OrderProcessingStarted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusProcessing
		o.UpdatedAt = data.StartedAt
	case EventOrderCompleted:
		var data OrderCompleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusCompleted
		o.UpdatedAt = data.CompletedAt
	case EventOrderFailed:
		var data OrderFailed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusFailed
		o.FailureReason = data.Reason
		o.UpdatedAt = data.FailedAt
	default:
		return fmt.Errorf("unknown order event type %q", event.EventType)
	}
	o.Version = event.Version
	return nil
}

// PlaceRequest is the finalized draft plus who is placing it.
type PlaceRequest struct {
	Draft      draft.Order
	UserID     string
	Currency   string
	PaymentRef string
}

type Service struct {
	eventStore store.EventStoreInterface
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(es store.EventStoreInterface, logger *zap.Logger) *Service {
	return &Service{
		eventStore: es,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) loadOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := aggregate.Load(ctx, s.eventStore, AggregateType, orderID, func() *Order { return &Order{} })
	if errors.Is(err, aggregate.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// Get returns the current state of the order.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.loadOrder(ctx, orderID)
}

// Place records a new pending order. The total is priced again from the
// snapshot's inputs and must equal the snapshot's total.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	d := req.Draft
	if err := validatePlaceable(req); err != nil {
		return nil, err
	}

	breakdown, err := pricing.Compute(d.AudioDuration, d.SelectedPlan.Rate, d.AddOns, d.Discount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if !breakdown.Total.Equal(d.TotalPrice) {
		return nil, fmt.Errorf("%w: draft %s, priced %s", ErrPriceMismatch, d.TotalPrice, breakdown.Total)
	}

	addOns := make([]AddOnLine, len(d.AddOns))
	for i, a := range d.AddOns {
		addOns[i] = AddOnLine{ID: a.ID, Name: a.Name, Rate: a.Rate}
	}

	event := OrderPlaced{
		OrderID: uuid.New().String(),
		UserID:  req.UserID,
		IsGuest: d.IsGuestMode,
		Customer: Customer{
			Name:    d.CustomerInfo.Name,
			Email:   d.CustomerInfo.Email,
			Company: d.CustomerInfo.Company,
			Phone:   d.CustomerInfo.Phone,
		},
		PlanID:          string(d.SelectedPlan.ID),
		PlanName:        d.SelectedPlan.Name,
		PlanRate:        d.SelectedPlan.Rate,
		DurationMinutes: d.AudioDuration,
		AddOns:          addOns,
		PromoCode:       d.DiscountCode,
		Discount:        d.Discount,
		Subtotal:        breakdown.Subtotal,
		DiscountAmount:  breakdown.DiscountAmount,
		Total:           breakdown.Total,
		Currency:        strings.ToUpper(req.Currency),
		PaymentRef:      req.PaymentRef,
		PlacedAt:        s.now(),
	}
	if d.AudioFile != nil {
		event.File = AudioFile{Name: d.AudioFile.Name, Size: d.AudioFile.Size, ContentType: d.AudioFile.ContentType}
	}
	if d.IsGuestMode {
		event.GuestEmail = NormalizeEmail(d.CustomerInfo.Email)
	}

	stored, err := s.eventStore.Append(ctx, event.OrderID, AggregateType, EventOrderPlaced, 0, event)
	if err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	order := &Order{}
	if err := order.ApplyEvent(*stored); err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("plan", order.PlanID),
		zap.Bool("guest", order.IsGuest),
		zap.String("total", order.Total.StringFixed(2)))
	return order, nil
}

func validatePlaceable(req PlaceRequest) error {
	d := req.Draft
	switch {
	case d.SelectedPlan == nil:
		return fmt.Errorf("%w: no plan selected", ErrInvalidOrder)
	case d.AudioFile == nil:
		return fmt.Errorf("%w: no audio file", ErrInvalidOrder)
	case d.AudioDuration <= 0:
		return fmt.Errorf("%w: audio duration is unknown", ErrInvalidOrder)
	case d.CustomerInfo.Name == "" || !draft.ValidateEmail(d.CustomerInfo.Email):
		return fmt.Errorf("%w: customer name and a valid email are required", ErrInvalidOrder)
	case !d.IsGuestMode && req.UserID == "":
		return ErrMissingUser
	}
	return nil
}

// NormalizeEmail is the form guest emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MarkPaid records the captured payment.
func (s *Service) MarkPaid(ctx context.Context, orderID, paymentRef string) error {
	return s.transition(ctx, orderID, StatusPaid, func(o *Order, now time.Time) (string, any) {
		return EventOrderPaid, OrderPaid{
			OrderID:    orderID,
			PaymentRef: paymentRef,
			Amount:     o.Total,
			PaidAt:     now,
		}
	})
}

func (s *Service) StartProcessing(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, StatusProcessing, func(o *Order, now time.Time) (string, any) {
		return EventOrderProcessingStarted, OrderProcessingStarted{OrderID: orderID, StartedAt: now}
	})
}

func (s *Service) Complete(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, StatusCompleted, func(o *Order, now time.Time) (string, any) {
		return EventOrderCompleted, OrderCompleted{OrderID: orderID, CompletedAt: now}
	})
}

func (s *Service) Fail(ctx context.Context, orderID, reason string) error {
	return s.transition(ctx, orderID, StatusFailed, func(o *Order, now time.Time) (string, any) {
		return EventOrderFailed, OrderFailed{OrderID: orderID, Reason: reason, FailedAt: now}
	})
}

// UpdateStatus moves an order to target through the matching command.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target Status, reason string) error {
	switch target {
	case StatusProcessing:
		return s.StartProcessing(ctx, orderID)
	case StatusCompleted:
		return s.Complete(ctx, orderID)
	case StatusFailed:
		return s.Fail(ctx, orderID, reason)
	default:
		return fmt.Errorf("%w: %s cannot be set directly", ErrInvalidStatus, target)
	}
}

// transition appends at the version the status check ran against. When
// another writer got there first the order is reloaded and checked once more,
// so the loser sees the new status instead of writing past it.
func (s *Service) transition(ctx context.Context, orderID string, target Status, build func(*Order, time.Time) (string, any)) error {
	var (
		order  *Order
		stored *store.Event
	)
	for attempt := 0; ; attempt++ {
		var err error
		order, err = s.loadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.CanTransitionTo(target) {
			return order.transitionError(target)
		}

		eventType, data := build(order, s.now())
		stored, err = s.eventStore.Append(ctx, orderID, AggregateType, eventType, order.Version, data)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrVersionConflict) && attempt < maxTransitionAttempts-1 {
			s.logger.Info("order changed concurrently, reloading",
				zap.String("order_id", orderID),
				zap.String("target", string(target)))
			continue
		}
		return fmt.Errorf("failed to store %s: %w", eventType, err)
	}
	if err := order.ApplyEvent(*stored); err != nil {
		return err
	}

	if err := aggregate.Snapshot(ctx, s.eventStore, AggregateType, order); err != nil {
		s.logger.Warn("failed to create snapshot", zap.String("order_id", order.ID), zap.Error(err))
	}
	return nil
}
