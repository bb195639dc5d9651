// Package checkout turns a finalized draft into a paid, persisted order.
//
// A checkout runs authorize, place, confirm and mark-paid in order. When a
// later step fails the earlier ones are compensated, and the draft is only
// changed after every step has succeeded.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/transcribe-checkout/internal/domain/draft"
	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrCheckoutInProgress = errors.New("a checkout is already in progress for this session")
	ErrAlreadyCheckedOut  = errors.New("this order has already been paid")
)

type Kind string

const (
	KindPaymentAuthorizationFailed Kind = "PaymentAuthorizationFailed"
	KindPersistenceFailed          Kind = "PersistenceFailed"
)

// Error is a failed checkout. The draft is unchanged, so the attempt can be retried.
type Error struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// OrderService is the part of order.Service checkout drives.
type OrderService interface {
	Place(ctx context.Context, req order.PlaceRequest) (*order.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentRef string) error
	Fail(ctx context.Context, orderID, reason string) error
}

type Request struct {
	// PaymentMethod is the gateway token collected by the widget.
	PaymentMethod string
	// UserID is empty for guest checkouts.
	UserID string
}

type Result struct {
	OrderID   string          `json:"order_id"`
	Status    draft.Status    `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type Options struct {
	Currency string
	Timeout  time.Duration
	// Rules enables the per-plan promo code rule; nil disables it.
	Rules draft.RuleSource
}

type Service struct {
	gateway  payment.Gateway
	orders   OrderService
	logger   *zap.Logger
	currency string
	timeout  time.Duration
	rules    draft.RuleSource

	inFlight sync.Map // *draft.Store -> struct{}
}

func NewService(gateway payment.Gateway, orders OrderService, opts Options, logger *zap.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &Service{
		gateway:  gateway,
		orders:   orders,
		logger:   logger,
		currency: strings.ToUpper(opts.Currency),
		timeout:  opts.Timeout,
		rules:    opts.Rules,
	}
}

// InProgress reports whether a checkout for store is running.
func (s *Service) InProgress(store *draft.Store) bool {
	_, ok := s.inFlight.Load(store)
	return ok
}

// Checkout pays for and persists the draft held by store.
func (s *Service) Checkout(ctx context.Context, store *draft.Store, req Request) (*Result, error) {
	if _, busy := s.inFlight.LoadOrStore(store, struct{}{}); busy {
		return nil, ErrCheckoutInProgress
	}
	defer s.inFlight.Delete(store)

	snap := store.Snapshot()
	if snap.OrderID != "" || snap.Status != draft.StatusPending {
		return nil, ErrAlreadyCheckedOut
	}
	if err := store.ValidateForCheckout(s.rules); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary := orderSummary(snap, req.UserID)
	auth, err := s.gateway.Authorize(ctx, payment.AuthorizeRequest{
		Amount:         snap.TotalPrice,
		Currency:       s.currency,
		CustomerEmail:  snap.CustomerInfo.Email,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: uuid.New().String(),
		Order:          summary,
	})
	if err != nil {
		s.logger.Warn("payment authorization failed", zap.Error(err))
		return nil, &Error{Kind: KindPaymentAuthorizationFailed, Retryable: true, Err: err}
	}

	// compensation runs even when the request context is gone
	bg := context.WithoutCancel(ctx)

	placed, err := s.orders.Place(ctx, order.PlaceRequest{
		Draft:      snap,
		UserID:     req.UserID,
		Currency:   s.currency,
		PaymentRef: auth.Handle,
	})
	if err != nil {
		s.release(bg, auth.Handle)
		if errors.Is(err, order.ErrInvalidOrder) || errors.Is(err, order.ErrPriceMismatch) {
			s.logger.Warn("order rejected", zap.String("handle", auth.Handle), zap.Error(err))
			return nil, fmt.Errorf("order rejected: %w", err)
		}
		s.logger.Error("failed to persist order", zap.String("handle", auth.Handle), zap.Error(err))
		return nil, &Error{Kind: KindPersistenceFailed, Retryable: true, Err: err}
	}

	summary.OrderID = placed.ID
	if err := s.confirm(ctx, payment.ConfirmRequest{Handle: auth.Handle, Order: summary}); err != nil {
		s.logger.Warn("payment confirmation failed",
			zap.String("order_id", placed.ID),
			zap.Error(err))
		if ferr := s.orders.Fail(bg, placed.ID, "payment confirmation failed"); ferr != nil {
			s.logger.Error("failed to mark order failed", zap.String("order_id", placed.ID), zap.Error(ferr))
		}
		s.release(bg, auth.Handle)
		return nil, &Error{Kind: KindPaymentAuthorizationFailed, Retryable: true, Err: err}
	}

	// Captured and placed with its payment ref; a lost OrderPaid is reconciled from the log.
	if err := s.orders.MarkPaid(bg, placed.ID, auth.Handle); err != nil {
		s.logger.Error("order captured but not marked paid",
			zap.String("order_id", placed.ID),
			zap.String("handle", auth.Handle),
			zap.Error(err))
	}

	if err := store.MarkPaid(placed.ID); err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}

	s.logger.Info("checkout completed",
		zap.String("order_id", placed.ID),
		zap.Bool("guest", snap.IsGuestMode),
		zap.String("total", snap.TotalPrice.StringFixed(2)))

	return &Result{
		OrderID:   placed.ID,
		Status:    draft.StatusPaid,
		Total:     placed.Total,
		CreatedAt: placed.CreatedAt,
	}, nil
}

// confirm retries once when the gateway could not be reached.
func (s *Service) confirm(ctx context.Context, req payment.ConfirmRequest) error {
	err := s.gateway.Confirm(ctx, req)
	if err == nil || !errors.Is(err, payment.ErrUnavailable) || ctx.Err() != nil {
		return err
	}
	s.logger.Info("retrying payment confirmation", zap.String("handle", req.Handle))
	return s.gateway.Confirm(ctx, req)
}

func (s *Service) release(ctx context.Context, handle string) {
	if err := s.gateway.Cancel(ctx, handle); err != nil {
		s.logger.Error("failed to release authorization", zap.String("handle", handle), zap.Error(err))
	}
}

func orderSummary(o draft.Order, userID string) payment.OrderSummary {
	summary := payment.OrderSummary{
		Minutes:    o.AudioDuration,
		AddOnIDs:   o.AddOnIDs(),
		PromoCode:  o.DiscountCode,
		IsGuest:    o.IsGuestMode,
		Total:      o.TotalPrice.StringFixed(2),
		CustomerID: userID,
	}
	if o.SelectedPlan != nil {
		summary.PlanID = string(o.SelectedPlan.ID)
	}
	return summary
}
