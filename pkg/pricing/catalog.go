package pricing

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"gopkg.in/yaml.v3"
)

// ErrUnknownPlan is returned when a plan id is not in the catalog
var ErrUnknownPlan = errors.New("unknown plan")

// ErrInvalidQuote is returned for non-positive member counts or durations
var ErrInvalidQuote = errors.New("invalid quote request")

// PlanConfig describes one purchasable plan
type PlanConfig struct {
	ID     billing.Plan `yaml:"id" json:"id"`
	Name   string       `yaml:"name" json:"name"`
	Months int          `yaml:"months" json:"months"`
	// Free plans grant their months at no charge
	Free bool `yaml:"free" json:"free"`
}

// Catalog holds prices and plan durations
type Catalog struct {
	Currency              string       `yaml:"currency" json:"currency"`
	PricePerMemberMonthly float64      `yaml:"price_per_member_monthly" json:"price_per_member_monthly"`
	PaymentMethod         string       `yaml:"payment_method" json:"payment_method"`
	Plans                 []PlanConfig `yaml:"plans" json:"plans"`
}

// DefaultCatalog returns the built-in plans: one member-month costs 1.00
func DefaultCatalog() *Catalog {
	return &Catalog{
		Currency:              "BRL",
		PricePerMemberMonthly: 1.00,
		PaymentMethod:         "pix",
		Plans: []PlanConfig{
			{ID: billing.PlanMonthly, Name: "Monthly", Months: 1},
			{ID: billing.PlanQuarterly, Name: "Quarterly", Months: 3},
			{ID: billing.PlanSemiannual, Name: "Semiannual", Months: 6},
			{ID: billing.PlanAnnual, Name: "Annual", Months: 12},
			{ID: billing.PlanFree, Name: "Free", Months: 12, Free: true},
		},
	}
}

// LoadCatalog reads a catalog from a YAML file. Fields missing from the file
// keep their defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	catalog := DefaultCatalog()
	if err := yaml.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Validate checks prices and plan definitions
func (c *Catalog) Validate() error {
	if c.PricePerMemberMonthly < 0 || math.IsNaN(c.PricePerMemberMonthly) {
		return fmt.Errorf("price_per_member_monthly must be non-negative, got %v", c.PricePerMemberMonthly)
	}
	if len(c.Plans) == 0 {
		return fmt.Errorf("catalog defines no plans")
	}
	seen := make(map[billing.Plan]bool, len(c.Plans))
	for _, plan := range c.Plans {
		if !plan.ID.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownPlan, plan.ID)
		}
		if seen[plan.ID] {
			return fmt.Errorf("plan %q defined twice", plan.ID)
		}
		seen[plan.ID] = true
		if plan.Months <= 0 {
			return fmt.Errorf("plan %q must last at least one month", plan.ID)
		}
	}
	return nil
}

// Plan looks up a plan by id
func (c *Catalog) Plan(id billing.Plan) (PlanConfig, error) {
	for _, plan := range c.Plans {
		if plan.ID == id {
			return plan, nil
		}
	}
	return PlanConfig{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
}

// Quote is the price of a purchase
type Quote struct {
	Plan        billing.Plan `json:"plan,omitempty"`
	MemberCount int          `json:"member_count"`
	Months      int          `json:"months"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
}

// QuoteSubscription prices memberLimit seats for the plan's duration.
// Free plans cost nothing.
func (c *Catalog) QuoteSubscription(id billing.Plan, memberLimit int) (Quote, error) {
	plan, err := c.Plan(id)
	if err != nil {
		return Quote{}, err
	}
	if memberLimit < 0 {
		return Quote{}, fmt.Errorf("%w: member limit %d", ErrInvalidQuote, memberLimit)
	}

	quote := Quote{Plan: plan.ID, MemberCount: memberLimit, Months: plan.Months, Currency: c.Currency}
	if !plan.Free {
		quote.Amount = c.price(memberLimit, plan.Months)
	}
	return quote, nil
}

// QuoteMemberAddition prices count extra seats for months
func (c *Catalog) QuoteMemberAddition(count, months int) (Quote, error) {
	if count <= 0 {
		return Quote{}, fmt.Errorf("%w: member count %d", ErrInvalidQuote, count)
	}
	if months <= 0 {
		return Quote{}, fmt.Errorf("%w: months %d", ErrInvalidQuote, months)
	}
	return Quote{
		MemberCount: count,
		Months:      months,
		Amount:      c.price(count, months),
		Currency:    c.Currency,
	}, nil
}

// price rounds to cents
func (c *Catalog) price(members, months int) float64 {
	return math.Round(float64(members)*c.PricePerMemberMonthly*float64(months)*100) / 100
}

// RemainingMonths is the number of 30-day periods left on sub at now,
// rounded up and at least 1. Member additions default to this duration so
// extra seats are paid until the current period ends.
func RemainingMonths(sub *billing.Subscription, now time.Time) int {
	if sub == nil || sub.Status != billing.SubscriptionStatusActive || !sub.EndDate.After(now) {
		return 1
	}
	const period = 30 * 24 * time.Hour
	left := sub.EndDate.Sub(now)
	months := int(left / period)
	if left%period != 0 {
		months++
	}
	return max(1, months)
}

// SubscriptionPayment builds a pending subscription payment for the plan.
// startDate, when set, overrides the computed start of the period.
func (c *Catalog) SubscriptionPayment(tenantID string, id billing.Plan, memberLimit int, startDate *time.Time) (*billing.Payment, error) {
	quote, err := c.QuoteSubscription(id, memberLimit)
	if err != nil {
		return nil, err
	}
	plan, _ := c.Plan(id)

	months := quote.Months
	limit := memberLimit
	count := memberLimit
	metadata := billing.PaymentMetadata{
		MemberCount:    &count,
		Months:         &months,
		NewMemberLimit: &limit,
		Plan:           plan.ID,
	}
	if startDate != nil {
		start := startDate.UTC()
		metadata.StartDate = &start
	}

	return &billing.Payment{
		TenantID:      tenantID,
		Type:          billing.PaymentTypeSubscription,
		Status:        billing.PaymentStatusPending,
		Amount:        quote.Amount,
		PaymentMethod: c.PaymentMethod,
		Description:   fmt.Sprintf("%s (%d members)", plan.Name, memberLimit),
		Metadata:      metadata,
	}, nil
}

// MemberAdditionPayment builds a pending payment adding count seats for months
func (c *Catalog) MemberAdditionPayment(tenantID string, count, months int) (*billing.Payment, error) {
	quote, err := c.QuoteMemberAddition(count, months)
	if err != nil {
		return nil, err
	}

	return &billing.Payment{
		TenantID:      tenantID,
		Type:          billing.PaymentTypeMemberAddition,
		Status:        billing.PaymentStatusPending,
		Amount:        quote.Amount,
		PaymentMethod: c.PaymentMethod,
		Description:   fmt.Sprintf("Adds %d members for %d months", count, months),
		Metadata: billing.PaymentMetadata{
			MemberCount: &count,
			Months:      &months,
		},
	}, nil
}
