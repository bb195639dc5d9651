// Package draft holds the in-progress order of one checkout session.
//
// Store is the single owner of the draft. Every action that changes the
// plan, duration, add-ons or discount recomputes the total before it
// returns, so a reader never observes a stale TotalPrice.
package draft

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/example/transcribe-checkout/internal/pricing"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDuration        = errors.New("audio duration must be a positive number of minutes")
	ErrGuestModeLocked        = errors.New("guest mode is fixed once the wizard is entered")
	ErrOrderIDAssigned        = errors.New("order id is already assigned")
	ErrEmptyOrderID           = errors.New("order id must not be empty")
	ErrDiscountAmountMismatch = errors.New("discount amount does not match the priced order")
	ErrPlanChanged            = errors.New("plan changed while the discount was being validated")
)

type FileRef struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// CustomerInfoPatch is a partial update; nil fields are left untouched.
type CustomerInfoPatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Company *string `json:"company,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

// Order is a point-in-time copy of the draft.
type Order struct {
	SelectedPlan   *catalog.Plan     `json:"selected_plan"`
	CustomerInfo   CustomerInfo      `json:"customer_info"`
	PromoCode      string            `json:"promo_code"`
	AudioFile      *FileRef          `json:"audio_file"`
	AudioDuration  int               `json:"audio_duration"`
	AddOns         []catalog.AddOn   `json:"add_ons"`
	Discount       decimal.Decimal   `json:"discount"`
	DiscountCode   string            `json:"discount_code"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	Breakdown      pricing.Breakdown `json:"breakdown"`
	OrderID        string            `json:"order_id,omitempty"`
	Status         Status            `json:"status"`
	IsGuestMode    bool              `json:"is_guest_mode"`
}

// AddOnIDs returns the selected add-on ids in selection order.
func (o Order) AddOnIDs() []string {
	ids := make([]string, len(o.AddOns))
	for i, a := range o.AddOns {
		ids[i] = a.ID
	}
	return ids
}

// PromoRequirementMet reports whether the selected plan's promo code rule is
// satisfied: either the plan needs no code, or a code was applied and is
// still the one in the promo field. A nil rules source disables the rule.
func (o Order) PromoRequirementMet(rules RuleSource) bool {
	if o.SelectedPlan == nil || rules == nil || !rules.Rule(o.SelectedPlan.ID).RequiresPromoCode {
		return true
	}
	return o.DiscountCode != "" && o.DiscountCode == o.PromoCode
}

// RuleSource resolves the business rules of a plan.
type RuleSource interface {
	Rule(id catalog.PlanID) catalog.PlanRule
}

// Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	order       Order
	fieldErrors map[string]string
	entered     bool
}

func NewStore(guest bool) *Store {
	s := &Store{}
	s.order = emptyOrder(guest)
	s.fieldErrors = make(map[string]string)
	return s
}

func emptyOrder(guest bool) Order {
	return Order{
		AddOns:         []catalog.AddOn{},
		Discount:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalPrice:     decimal.Zero,
		Breakdown: pricing.Breakdown{
			BasePrice:      decimal.Zero,
			AddOnTotal:     decimal.Zero,
			Subtotal:       decimal.Zero,
			DiscountAmount: decimal.Zero,
			Total:          decimal.Zero,
		},
		Status:      StatusPending,
		IsGuestMode: guest,
	}
}

// recompute must be called with mu held.
func (s *Store) recompute() error {
	rate := decimal.Zero
	if s.order.SelectedPlan != nil {
		rate = s.order.SelectedPlan.Rate
	}
	b, err := pricing.Compute(s.order.AudioDuration, rate, s.order.AddOns, s.order.Discount)
	if err != nil {
		return err
	}
	s.order.Breakdown = b
	s.order.DiscountAmount = b.DiscountAmount
	s.order.TotalPrice = b.Total
	return nil
}

// Snapshot returns a deep copy of the draft.
func (s *Store) Snapshot() Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOrder()
}

func (s *Store) copyOrder() Order {
	o := s.order
	if o.SelectedPlan != nil {
		p := *o.SelectedPlan
		o.SelectedPlan = &p
	}
	if o.AudioFile != nil {
		f := *o.AudioFile
		o.AudioFile = &f
	}
	o.AddOns = append([]catalog.AddOn{}, o.AddOns...)
	return o
}

// SetPlan selects plan and reprices. Discounts are validated per plan, so
// switching to another plan drops the applied discount. The typed promo code
// is kept.
func (s *Store) SetPlan(plan catalog.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.order.SelectedPlan; prev != nil && prev.ID != plan.ID {
		s.order.Discount = decimal.Zero
		s.order.DiscountCode = ""
	}
	p := plan
	s.order.SelectedPlan = &p
	delete(s.fieldErrors, FieldPlan)
	return s.recompute()
}

// PlanID returns the selected plan's id, or "" before one is chosen.
func (s *Store) PlanID() catalog.PlanID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.order.SelectedPlan == nil {
		return ""
	}
	return s.order.SelectedPlan.ID
}

// SetCustomerInfo merges the non-nil fields and clears their recorded errors.
func (s *Store) SetCustomerInfo(patch CustomerInfoPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Name != nil {
		s.order.CustomerInfo.Name = strings.TrimSpace(*patch.Name)
		delete(s.fieldErrors, FieldName)
	}
	if patch.Email != nil {
		s.order.CustomerInfo.Email = strings.TrimSpace(*patch.Email)
		delete(s.fieldErrors, FieldEmail)
	}
	if patch.Company != nil {
		s.order.CustomerInfo.Company = strings.TrimSpace(*patch.Company)
		delete(s.fieldErrors, FieldCompany)
	}
	if patch.Phone != nil {
		s.order.CustomerInfo.Phone = strings.TrimSpace(*patch.Phone)
		delete(s.fieldErrors, FieldPhone)
	}
}

// SetPromoCode records the code typed by the user. The discount only changes
// through the discount fields.
func (s *Store) SetPromoCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.PromoCode = strings.TrimSpace(code)
	delete(s.fieldErrors, FieldPromoCode)
}

// PromoCode returns the code currently typed by the user.
func (s *Store) PromoCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.PromoCode
}

// SetAudioFile records upload metadata. A nil file clears the file and its duration.
func (s *Store) SetAudioFile(file *FileRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file == nil {
		s.order.AudioFile = nil
		s.order.AudioDuration = 0
		return s.recompute()
	}

	if verr := validateFile(*file); verr != nil {
		for k, v := range verr.Fields {
			s.fieldErrors[k] = v
		}
		return verr
	}

	f := *file
	s.order.AudioFile = &f
	delete(s.fieldErrors, FieldAudioFile)
	return nil
}

// SetAudioDuration sets the whole-minute duration measured for the file.
func (s *Store) SetAudioDuration(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.AudioDuration = minutes
	delete(s.fieldErrors, FieldDuration)
	return s.recompute()
}

// SetAddOns replaces the selection, keeping the first occurrence of each id.
func (s *Store) SetAddOns(addOns []catalog.AddOn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(addOns))
	selected := make([]catalog.AddOn, 0, len(addOns))
	for _, a := range addOns {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		selected = append(selected, a)
	}
	s.order.AddOns = selected
	return s.recompute()
}

// ToggleAddOn selects the add-on, or removes it when it is already selected.
func (s *Store) ToggleAddOn(addOn catalog.AddOn) (selected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.order.AddOns {
		if a.ID == addOn.ID {
			next := make([]catalog.AddOn, 0, len(s.order.AddOns)-1)
			next = append(next, s.order.AddOns[:i]...)
			next = append(next, s.order.AddOns[i+1:]...)
			s.order.AddOns = next
			return false, s.recompute()
		}
	}
	s.order.AddOns = append(append([]catalog.AddOn{}, s.order.AddOns...), addOn)
	return true, s.recompute()
}

// SetDiscount sets the discount fraction and reprices.
func (s *Store) SetDiscount(fraction decimal.Decimal) error {
	if err := pricing.ValidateDiscount(fraction); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Discount = fraction
	return s.recompute()
}

func (s *Store) SetDiscountCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.DiscountCode = code
	return s.recompute()
}

// SetDiscountAmount confirms the discount amount of the current fraction.
// The stored amount is always the forward computation, so a caller-computed
// amount that disagrees with it is rejected instead of stored.
func (s *Store) SetDiscountAmount(amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recompute(); err != nil {
		return err
	}
	if !amount.Equal(s.order.DiscountAmount) {
		return fmt.Errorf("%w: got %s, priced %s", ErrDiscountAmountMismatch, amount, s.order.DiscountAmount)
	}
	return nil
}

// ApplyDiscount stores a discount validated for plan and returns the priced
// amount, all under one lock. It fails with ErrPlanChanged when plan is no
// longer the selected plan, leaving the draft unchanged.
func (s *Store) ApplyDiscount(plan catalog.PlanID, code string, fraction decimal.Decimal) (decimal.Decimal, error) {
	if err := pricing.ValidateDiscount(fraction); err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := catalog.PlanID("")
	if s.order.SelectedPlan != nil {
		current = s.order.SelectedPlan.ID
	}
	if current != plan {
		return decimal.Zero, fmt.Errorf("%w: validated for %q, selected %q", ErrPlanChanged, plan, current)
	}

	prevFraction, prevCode := s.order.Discount, s.order.DiscountCode
	s.order.Discount = fraction
	s.order.DiscountCode = code
	if err := s.recompute(); err != nil {
		s.order.Discount, s.order.DiscountCode = prevFraction, prevCode
		return decimal.Zero, err
	}
	return s.order.DiscountAmount, nil
}

// ClearDiscount drops any applied discount and reprices.
func (s *Store) ClearDiscount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Discount = decimal.Zero
	s.order.DiscountCode = ""
	return s.recompute()
}

// SetOrderID assigns the persisted order id. It can only be assigned once.
func (s *Store) SetOrderID(id string) error {
	if id == "" {
		return ErrEmptyOrderID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.order.OrderID != "" {
		return ErrOrderIDAssigned
	}
	s.order.OrderID = id
	return nil
}

// SetStatus moves the status forward.
func (s *Store) SetStatus(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.order.Status.CanTransitionTo(status) {
		return s.order.Status.transitionError(status)
	}
	s.order.Status = status
	return nil
}

// MarkPaid assigns the order id and moves pending to paid in one step, so a
// failure leaves neither field changed.
func (s *Store) MarkPaid(orderID string) error {
	if orderID == "" {
		return ErrEmptyOrderID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.order.OrderID != "" {
		return ErrOrderIDAssigned
	}
	if !s.order.Status.CanTransitionTo(StatusPaid) {
		return s.order.Status.transitionError(StatusPaid)
	}
	s.order.OrderID = orderID
	s.order.Status = StatusPaid
	return nil
}

// SetGuestMode is only allowed before the wizard is entered.
func (s *Store) SetGuestMode(guest bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entered {
		return ErrGuestModeLocked
	}
	s.order.IsGuestMode = guest
	return nil
}

// Enter marks the wizard as entered, which fixes the guest mode.
func (s *Store) Enter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entered = true
}

// Reset returns the draft to its initial state. Guest mode is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = emptyOrder(s.order.IsGuestMode)
	s.fieldErrors = make(map[string]string)
	s.entered = false
}

// SetFieldError records msg for field; an empty msg clears it.
func (s *Store) SetFieldError(field, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg == "" {
		delete(s.fieldErrors, field)
		return
	}
	s.fieldErrors[field] = msg
}

func (s *Store) FieldErrors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.fieldErrors))
	for k, v := range s.fieldErrors {
		out[k] = v
	}
	return out
}

// ValidateForCheckout checks everything a finalized order needs and records
// the failing fields.
func (s *Store) ValidateForCheckout(rules RuleSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := make(map[string]string)
	o := s.order

	if o.SelectedPlan == nil {
		fields[FieldPlan] = "select a plan"
	}
	if o.AudioFile == nil {
		fields[FieldAudioFile] = "upload an audio file"
	}
	if o.AudioDuration <= 0 {
		fields[FieldDuration] = "audio duration is unknown"
	}
	if o.CustomerInfo.Name == "" {
		fields[FieldName] = "name is required"
	}
	switch {
	case o.CustomerInfo.Email == "":
		fields[FieldEmail] = "email is required"
	case !ValidateEmail(o.CustomerInfo.Email):
		fields[FieldEmail] = "email is not valid"
	}
	if !o.PromoRequirementMet(rules) {
		fields[FieldPromoCode] = "a valid promo code is required for this plan"
	}

	if len(fields) == 0 {
		return nil
	}
	for k, v := range fields {
		s.fieldErrors[k] = v
	}
	return &ValidationError{Fields: fields}
}
