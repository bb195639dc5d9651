// Package wizard gates navigation through the four checkout steps.
package wizard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/example/transcribe-checkout/internal/domain/draft"
)

type Step int

const (
	StepUpload Step = iota + 1
	StepCustomerInfo
	StepAddOns
	StepReview
)

var stepNames = map[Step]string{
	StepUpload:       "upload",
	StepCustomerInfo: "customer_info",
	StepAddOns:       "add_ons",
	StepReview:       "review",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome tells the caller where navigation led.
type Outcome string

const (
	Advanced      Outcome = "advanced"
	Retreated     Outcome = "retreated"
	EnterCheckout Outcome = "enter_checkout"
	ExitToPlans   Outcome = "exit_to_plans"
)

var ErrStepIncomplete = errors.New("current step is not complete")

// Wizard is safe for concurrent use.
type Wizard struct {
	mu    sync.Mutex
	store *draft.Store
	rules draft.RuleSource
	step  Step
}

func New(store *draft.Store, rules draft.RuleSource) *Wizard {
	return &Wizard{
		store: store,
		rules: rules,
		step:  StepUpload,
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// CanAdvance reports whether the current step's completion predicate holds.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.complete(w.store.Snapshot())
}

// complete must be called with mu held. The customer info step also holds
// the promo code field, so a plan that requires a code gates it there.
func (w *Wizard) complete(o draft.Order) bool {
	switch w.step {
	case StepUpload:
		return o.AudioFile != nil && o.AudioDuration > 0
	case StepCustomerInfo:
		return o.CustomerInfo.Name != "" && o.CustomerInfo.Email != "" && o.PromoRequirementMet(w.rules)
	default:
		return true
	}
}

// Next moves forward one step. From the review step it runs the full
// checkout validation and returns EnterCheckout on success; the wizard
// stays on review either way.
func (w *Wizard) Next() (Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.complete(w.store.Snapshot()) {
		return "", fmt.Errorf("%w: %s", ErrStepIncomplete, w.step)
	}

	if w.step == StepReview {
		if err := w.store.ValidateForCheckout(w.rules); err != nil {
			return "", err
		}
		return EnterCheckout, nil
	}

	w.step++
	return Advanced, nil
}

// Back moves one step back; from the upload step it leaves the wizard.
func (w *Wizard) Back() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepUpload {
		return ExitToPlans
	}
	w.step--
	return Retreated
}

// Reset returns to the upload step.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepUpload
}
