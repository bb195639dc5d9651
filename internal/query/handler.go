package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/readmodel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrLookupNotFound covers both unknown ids and email mismatches.
	ErrLookupNotFound    = errors.New("order not found")
	ErrLookupUnavailable = errors.New("order lookup unavailable")
)

type OrderReadModel = readmodel.OrderReadModel

type Handler struct {
	readStore store.OrderReadStore
	logger    *zap.Logger
}

func NewHandler(readStore store.OrderReadStore, logger *zap.Logger) *Handler {
	return &Handler{readStore: readStore, logger: logger}
}

// LookupGuestOrder returns the order only when email matches the guest email
// it was placed with.
func (h *Handler) LookupGuestOrder(ctx context.Context, orderID, email string) (*OrderReadModel, error) {
	orderID = strings.TrimSpace(orderID)
	email = normalizeEmail(email)
	if orderID == "" || email == "" {
		return nil, ErrLookupNotFound
	}

	o, err := h.readStore.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLookupNotFound
	}
	if err != nil {
		h.logger.Error("order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}

	if !o.IsGuest || normalizeEmail(o.GuestEmail) != email {
		h.logger.Info("guest lookup email mismatch", zap.String("order_id", orderID))
		return nil, ErrLookupNotFound
	}
	return o, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetOrder returns any order by id, for admin use.
func (h *Handler) GetOrder(ctx context.Context, id string) (*OrderReadModel, error) {
	o, err := h.readStore.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLookupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	return o, nil
}

func (h *Handler) ListOrdersByUser(ctx context.Context, userID string) ([]*OrderReadModel, error) {
	orders, err := h.readStore.ListOrdersByUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list orders", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	return orders, nil
}

// ListAllOrders returns all orders (for admin use)
func (h *Handler) ListAllOrders(ctx context.Context) ([]*OrderReadModel, error) {
	orders, err := h.readStore.ListOrders(ctx)
	if err != nil {
		h.logger.Error("failed to list all orders", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	return orders, nil
}

type PlanSummary struct {
	PlanID  string          `json:"plan_id"`
	Orders  int             `json:"orders"`
	Minutes int             `json:"minutes"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Analytics is the admin dashboard summary. Revenue counts paid, processing
// and completed orders.
type Analytics struct {
	TotalOrders      int             `json:"total_orders"`
	ByStatus         map[string]int  `json:"by_status"`
	Revenue          decimal.Decimal `json:"revenue"`
	DiscountedOrders int             `json:"discounted_orders"`
	DiscountGiven    decimal.Decimal `json:"discount_given"`
	GuestOrders      int             `json:"guest_orders"`
	Plans            []PlanSummary   `json:"plans"`
}

func (h *Handler) Analytics(ctx context.Context) (*Analytics, error) {
	orders, err := h.ListAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(orders), nil
}

func summarize(orders []*OrderReadModel) *Analytics {
	a := &Analytics{
		ByStatus:      make(map[string]int),
		Revenue:       decimal.Zero,
		DiscountGiven: decimal.Zero,
		Plans:         []PlanSummary{},
	}
	plans := make(map[string]*PlanSummary)

	for _, o := range orders {
		a.TotalOrders++
		a.ByStatus[o.Status]++
		if o.IsGuest {
			a.GuestOrders++
		}

		ps, ok := plans[o.PlanID]
		if !ok {
			ps = &PlanSummary{PlanID: o.PlanID, Revenue: decimal.Zero}
			plans[o.PlanID] = ps
		}
		ps.Orders++
		ps.Minutes += o.DurationMinutes

		if !countsAsRevenue(o.Status) {
			continue
		}
		a.Revenue = a.Revenue.Add(o.Total)
		ps.Revenue = ps.Revenue.Add(o.Total)
		if o.Discount.IsPositive() {
			a.DiscountedOrders++
			a.DiscountGiven = a.DiscountGiven.Add(o.DiscountAmount)
		}
	}

	for _, ps := range plans {
		a.Plans = append(a.Plans, *ps)
	}
	sort.Slice(a.Plans, func(i, j int) bool { return a.Plans[i].PlanID < a.Plans[j].PlanID })
	return a
}

func countsAsRevenue(status string) bool {
	switch status {
	case "paid", "processing", "completed":
		return true
	}
	return false
}
