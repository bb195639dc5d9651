package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type PlanID string

const (
	PlanEconomy  PlanID = "economy"
	PlanStandard PlanID = "standard"
	PlanPremium  PlanID = "premium"
	PlanPartner  PlanID = "partner"
)

var (
	ErrUnknownPlan   = errors.New("unknown plan")
	ErrUnknownAddOn  = errors.New("unknown add-on")
	ErrInvalidRate   = errors.New("rate must be a positive decimal")
	ErrDuplicateID   = errors.New("duplicate catalog id")
	ErrEmptyCatalog  = errors.New("catalog must define at least one plan")
	ErrUnsupportedID = errors.New("plan id is not one of the supported tiers")
)

// Plan is a priced transcription tier. Rate is currency per audio minute.
type Plan struct {
	ID         PlanID          `json:"id"`
	Name       string          `json:"name"`
	Rate       decimal.Decimal `json:"rate"`
	Turnaround string          `json:"turnaround"`
}

// AddOn is an optional enhancement billed per audio minute.
type AddOn struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description"`
}

// PlanRule holds the per-plan business rules enforced at checkout.
type PlanRule struct {
	RequiresPromoCode bool `json:"requires_promo_code"`
}

// Catalog is the immutable set of plans, add-ons and plan rules loaded at startup.
type Catalog struct {
	plans    []Plan
	addOns   []AddOn
	rules    map[PlanID]PlanRule
	planIdx  map[PlanID]int
	addOnIdx map[string]int
}

func New(plans []Plan, addOns []AddOn, rules map[PlanID]PlanRule) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		plans:    make([]Plan, 0, len(plans)),
		addOns:   make([]AddOn, 0, len(addOns)),
		rules:    make(map[PlanID]PlanRule, len(rules)),
		planIdx:  make(map[PlanID]int, len(plans)),
		addOnIdx: make(map[string]int, len(addOns)),
	}

	for _, p := range plans {
		if !isSupportedPlan(p.ID) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedID, p.ID)
		}
		if !p.Rate.IsPositive() {
			return nil, fmt.Errorf("plan %s: %w", p.ID, ErrInvalidRate)
		}
		if _, exists := c.planIdx[p.ID]; exists {
			return nil, fmt.Errorf("%w: plan %s", ErrDuplicateID, p.ID)
		}
		c.planIdx[p.ID] = len(c.plans)
		c.plans = append(c.plans, p)
	}

	for _, a := range addOns {
		if !a.Rate.IsPositive() {
			return nil, fmt.Errorf("add-on %s: %w", a.ID, ErrInvalidRate)
		}
		if _, exists := c.addOnIdx[a.ID]; exists {
			return nil, fmt.Errorf("%w: add-on %s", ErrDuplicateID, a.ID)
		}
		c.addOnIdx[a.ID] = len(c.addOns)
		c.addOns = append(c.addOns, a)
	}

	for id, r := range rules {
		if _, ok := c.planIdx[id]; !ok {
			return nil, fmt.Errorf("rule for %w: %s", ErrUnknownPlan, id)
		}
		c.rules[id] = r
	}

	return c, nil
}

func isSupportedPlan(id PlanID) bool {
	switch id {
	case PlanEconomy, PlanStandard, PlanPremium, PlanPartner:
		return true
	}
	return false
}

func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

func (c *Catalog) AddOns() []AddOn {
	out := make([]AddOn, len(c.addOns))
	copy(out, c.addOns)
	return out
}

func (c *Catalog) Plan(id PlanID) (Plan, error) {
	i, ok := c.planIdx[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, id)
	}
	return c.plans[i], nil
}

func (c *Catalog) AddOn(id string) (AddOn, error) {
	i, ok := c.addOnIdx[id]
	if !ok {
		return AddOn{}, fmt.Errorf("%w: %s", ErrUnknownAddOn, id)
	}
	return c.addOns[i], nil
}

// Rule returns the rule for a plan; plans without an entry get the zero rule.
func (c *Catalog) Rule(id PlanID) PlanRule {
	return c.rules[id]
}

// Rules returns a copy of the rule table keyed by plan id.
func (c *Catalog) Rules() map[PlanID]PlanRule {
	out := make(map[PlanID]PlanRule, len(c.rules))
	for k, v := range c.rules {
		out[k] = v
	}
	return out
}

// catalogFile is the on-disk YAML layout. Rates are strings so they parse
// as exact decimals.
type catalogFile struct {
	Plans []struct {
		ID                PlanID `yaml:"id"`
		Name              string `yaml:"name"`
		Rate              string `yaml:"rate"`
		Turnaround        string `yaml:"turnaround"`
		RequiresPromoCode bool   `yaml:"requires_promo_code"`
	} `yaml:"plans"`
	AddOns []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Rate        string `yaml:"rate"`
		Description string `yaml:"description"`
	} `yaml:"add_ons"`
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	plans := make([]Plan, 0, len(f.Plans))
	rules := make(map[PlanID]PlanRule)
	for _, p := range f.Plans {
		rate, err := decimal.NewFromString(p.Rate)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", p.ID, ErrInvalidRate)
		}
		plans = append(plans, Plan{ID: p.ID, Name: p.Name, Rate: rate, Turnaround: p.Turnaround})
		if p.RequiresPromoCode {
			rules[p.ID] = PlanRule{RequiresPromoCode: true}
		}
	}

	addOns := make([]AddOn, 0, len(f.AddOns))
	for _, a := range f.AddOns {
		rate, err := decimal.NewFromString(a.Rate)
		if err != nil {
			return nil, fmt.Errorf("add-on %s: %w", a.ID, ErrInvalidRate)
		}
		addOns = append(addOns, AddOn{ID: a.ID, Name: a.Name, Rate: rate, Description: a.Description})
	}

	return New(plans, addOns, rules)
}

// Load reads the catalog file at path, or returns the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Default is the catalog shipped with the widget.
func Default() *Catalog {
	c, err := Parse([]byte(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

const defaultCatalog = `
plans:
  - id: economy
    name: Economy
    rate: "0.50"
    turnaround: 5 business days
  - id: standard
    name: Standard
    rate: "1.00"
    turnaround: 3 business days
  - id: premium
    name: Premium
    rate: "1.75"
    turnaround: 24 hours
  - id: partner
    name: Partner
    rate: "0.35"
    turnaround: 5 business days
    requires_promo_code: true
add_ons:
  - id: timestamps
    name: Timestamps
    rate: "0.10"
    description: Time codes at every speaker change
  - id: speaker_id
    name: Speaker identification
    rate: "0.15"
    description: Speakers labelled by name
  - id: verbatim
    name: Clean verbatim
    rate: "0.25"
    description: Filler words and false starts kept
  - id: rush
    name: Rush delivery
    rate: "0.50"
    description: Halves the turnaround time
`
