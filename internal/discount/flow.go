// Package discount runs promo-code validation for one checkout session.
//
// Flow is a small state machine: idle -> validating -> applied | rejected.
// Every Begin issues a new ticket; a result is only applied when its ticket
// is still the current one and its code and plan still match the draft.
package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/example/transcribe-checkout/internal/domain/draft"
	"github.com/example/transcribe-checkout/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateApplied    State = "applied"
	StateRejected   State = "rejected"
)

const (
	DefaultTimeout = 30 * time.Second

	// FallbackMessage is shown when a rejection carries no message.
	FallbackMessage    = "Invalid discount code"
	timeoutMessage     = "Discount validation timed out, please try again"
	planChangedMessage = "Plan changed, apply the promo code again"
)

var (
	ErrDiscountDisabled   = errors.New("discount codes are disabled")
	ErrEmptyCode          = errors.New("promo code must not be empty")
	ErrValidationInFlight = errors.New("this promo code is already being validated")
	ErrSuperseded         = errors.New("validation result was superseded")
	ErrRejected           = errors.New("promo code rejected")
)

// Ticket identifies one validation attempt.
type Ticket struct {
	seq    uint64
	Code   string
	PlanID catalog.PlanID
}

// Status is what the widget shows next to the promo code field.
type Status struct {
	State   State           `json:"state"`
	Code    string          `json:"code,omitempty"`
	Percent decimal.Decimal `json:"discount_percent"`
	Notice  string          `json:"notice,omitempty"`
	Enabled bool            `json:"enabled"`
}

type Options struct {
	Enabled bool
	Timeout time.Duration
}

type Flow struct {
	mu        sync.Mutex
	store     *draft.Store
	validator Validator
	logger    *zap.Logger
	enabled   bool
	timeout   time.Duration

	seq     uint64
	current Ticket
	state   State
	percent decimal.Decimal
	notice  string
}

func NewFlow(store *draft.Store, validator Validator, opts Options, logger *zap.Logger) *Flow {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Flow{
		store:     store,
		validator: validator,
		logger:    logger,
		enabled:   opts.Enabled,
		timeout:   timeout,
		state:     StateIdle,
		percent:   decimal.Zero,
	}
}

func (f *Flow) Enabled() bool {
	return f.enabled
}

func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status()
}

func (f *Flow) status() Status {
	return Status{
		State:   f.state,
		Code:    f.current.Code,
		Percent: f.percent,
		Notice:  f.notice,
		Enabled: f.enabled,
	}
}

// Begin records code as the draft's promo code and starts validating it.
// Any outstanding ticket is superseded. Re-submitting the code that is
// already being validated returns ErrValidationInFlight.
func (f *Flow) Begin(code string) (Ticket, error) {
	if !f.enabled {
		return Ticket{}, ErrDiscountDisabled
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Ticket{}, ErrEmptyCode
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateValidating && f.current.Code == code && f.store.PromoCode() == code {
		return Ticket{}, ErrValidationInFlight
	}

	f.store.SetPromoCode(code)
	if err := f.store.ClearDiscount(); err != nil {
		return Ticket{}, err
	}

	f.seq++
	f.current = Ticket{seq: f.seq, Code: code, PlanID: f.store.PlanID()}
	f.state = StateValidating
	f.percent = decimal.Zero
	f.notice = ""
	return f.current, nil
}

// Resolve applies the outcome of a validation. A result whose ticket is no
// longer current, or whose code or plan no longer matches the draft, is
// discarded with ErrSuperseded and leaves all state untouched.
func (f *Flow) Resolve(t Ticket, result Result, verr error) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateValidating || t.seq != f.current.seq ||
		t.Code != f.store.PromoCode() || t.PlanID != f.store.PlanID() {
		return f.status(), ErrSuperseded
	}

	if verr != nil {
		msg := FallbackMessage
		if errors.Is(verr, context.DeadlineExceeded) {
			msg = timeoutMessage
		}
		f.logger.Warn("discount validation failed", zap.String("code", t.Code), zap.Error(verr))
		return f.reject(msg)
	}
	if !result.Valid {
		return f.reject(result.Message)
	}

	fraction, err := pricing.FractionFromPercent(result.Percent)
	if err != nil {
		f.logger.Warn("validator returned unusable percent",
			zap.String("code", t.Code), zap.String("percent", result.Percent.String()))
		return f.reject("")
	}
	if err := f.apply(t, fraction); err != nil {
		if errors.Is(err, draft.ErrPlanChanged) {
			f.supersede(planChangedMessage)
			return f.status(), fmt.Errorf("%w: %v", ErrSuperseded, err)
		}
		f.logger.Error("failed to apply discount", zap.String("code", t.Code), zap.Error(err))
		return f.reject("")
	}

	f.state = StateApplied
	f.percent = result.Percent
	f.notice = result.Message
	f.store.SetFieldError(draft.FieldPromoCode, "")
	return f.status(), nil
}

// apply stores the discount for the ticket's plan in one step and confirms
// the priced amount.
func (f *Flow) apply(t Ticket, fraction decimal.Decimal) error {
	amount, err := f.store.ApplyDiscount(t.PlanID, t.Code, fraction)
	if err != nil {
		return err
	}
	f.logger.Debug("discount applied",
		zap.String("code", t.Code),
		zap.String("plan", string(t.PlanID)),
		zap.String("amount", amount.String()))
	return nil
}

// supersede drops the outstanding ticket and returns to idle. The code is
// kept so the widget can show it. Must be called with mu held.
func (f *Flow) supersede(notice string) {
	f.seq++
	f.current = Ticket{seq: f.seq, Code: f.current.Code}
	f.state = StateIdle
	f.percent = decimal.Zero
	f.notice = notice
	f.store.SetFieldError(draft.FieldPromoCode, "")
}

func (f *Flow) reject(msg string) (Status, error) {
	if msg == "" {
		msg = FallbackMessage
	}
	if err := f.store.ClearDiscount(); err != nil {
		return f.status(), err
	}
	f.state = StateRejected
	f.percent = decimal.Zero
	f.notice = msg
	f.store.SetFieldError(draft.FieldPromoCode, msg)
	return f.status(), fmt.Errorf("%w: %s", ErrRejected, msg)
}

// Submit validates code end to end. The validator call runs outside the
// flow lock and is bounded by the configured timeout.
func (f *Flow) Submit(ctx context.Context, code string) (Status, error) {
	if strings.TrimSpace(code) == "" {
		return f.Clear()
	}

	ticket, err := f.Begin(code)
	if err != nil {
		return f.Status(), err
	}

	vctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, verr := f.validator.Validate(vctx, Request{Code: ticket.Code, PlanID: ticket.PlanID})
	return f.Resolve(ticket, result, verr)
}

// SelectPlan changes the draft's plan. A discount applied or being validated
// for the previous plan is dropped and the widget asks for the code again.
func (f *Flow) SelectPlan(plan catalog.Plan) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := f.store.PlanID()
	if err := f.store.SetPlan(plan); err != nil {
		return f.status(), err
	}
	if prev == plan.ID || f.state == StateIdle {
		return f.status(), nil
	}
	f.logger.Info("plan changed, discount dropped",
		zap.String("from", string(prev)),
		zap.String("to", string(plan.ID)),
		zap.String("code", f.current.Code))
	f.supersede(planChangedMessage)
	return f.status(), nil
}

// Clear drops the promo code and any discount and returns to idle.
// Outstanding validations are superseded.
func (f *Flow) Clear() (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	f.current = Ticket{seq: f.seq}
	f.state = StateIdle
	f.percent = decimal.Zero
	f.notice = ""
	f.store.SetPromoCode("")
	f.store.SetFieldError(draft.FieldPromoCode, "")
	if err := f.store.ClearDiscount(); err != nil {
		return f.status(), err
	}
	return f.status(), nil
}
