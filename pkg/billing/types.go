package billing

import (
	"encoding/json"
	"time"
)

// Plan represents a subscription plan
type Plan string

const (
	PlanMonthly    Plan = "monthly"
	PlanQuarterly  Plan = "quarterly"
	PlanSemiannual Plan = "semiannual"
	PlanAnnual     Plan = "annual"
	PlanFree       Plan = "free"
)

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	switch p {
	case PlanMonthly, PlanQuarterly, PlanSemiannual, PlanAnnual, PlanFree:
		return true
	}
	return false
}

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
	SubscriptionStatusPending SubscriptionStatus = "pending"
)

// Valid reports whether s is a known subscription status
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusPending:
		return true
	}
	return false
}

// Subscription is the billing record of one tenant. It is keyed by TenantID.
type Subscription struct {
	TenantID    string             `json:"tenant_id"`
	Plan        Plan               `json:"plan"`
	Status      SubscriptionStatus `json:"status"`
	MemberLimit int                `json:"member_limit"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Amount      float64            `json:"amount"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Clone returns a copy of the subscription
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// PaymentType determines which effect a payment has when confirmed
type PaymentType string

const (
	PaymentTypeSubscription   PaymentType = "subscription"
	PaymentTypeMemberAddition PaymentType = "member_addition"
)

// Valid reports whether t is a known payment type
func (t PaymentType) Valid() bool {
	return t == PaymentTypeSubscription || t == PaymentTypeMemberAddition
}

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMetadata carries the optional inputs of a payment's effect
type PaymentMetadata struct {
	// MemberCount is the number of seats a member_addition payment adds
	MemberCount *int `json:"member_count,omitempty"`
	// Months is the coverage a subscription payment buys. Defaults to 1.
	Months *int `json:"months,omitempty"`
	// StartDate overrides the computed start of the purchased period
	StartDate *time.Time `json:"start_date,omitempty"`
	// NewMemberLimit is the limit the tenant ends up with. Informational,
	// except that it seeds the limit of a newly created subscription.
	NewMemberLimit *int `json:"new_member_limit,omitempty"`
	Plan           Plan `json:"plan,omitempty"`
}

// UnmarshalJSON decodes metadata leniently: a start_date that does not parse
// to a valid instant is dropped rather than failing the whole record.
func (m *PaymentMetadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		MemberCount    *int            `json:"member_count,omitempty"`
		Months         *int            `json:"months,omitempty"`
		StartDate      json.RawMessage `json:"start_date,omitempty"`
		NewMemberLimit *int            `json:"new_member_limit,omitempty"`
		Plan           Plan            `json:"plan,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.MemberCount = raw.MemberCount
	m.Months = raw.Months
	m.NewMemberLimit = raw.NewMemberLimit
	m.Plan = raw.Plan
	m.StartDate = parseStartDate(raw.StartDate)
	return nil
}

var startDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseStartDate(raw json.RawMessage) *time.Time {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range startDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// months returns the coverage in months, defaulting to 1
func (m PaymentMetadata) months() int {
	if m.Months == nil {
		return 1
	}
	return *m.Months
}

// memberCount returns the seat count, defaulting to 0
func (m PaymentMetadata) memberCount() int {
	if m.MemberCount == nil {
		return 0
	}
	return *m.MemberCount
}

// Payment is a financial transaction whose confirmation mutates one subscription
type Payment struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Type          PaymentType     `json:"type"`
	Status        PaymentStatus   `json:"status"`
	Amount        float64         `json:"amount"`
	Description   string          `json:"description,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Metadata      PaymentMetadata `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	ConfirmedBy   string          `json:"confirmed_by,omitempty"`
}

// Clone returns a deep copy of the payment
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	c.Metadata = PaymentMetadata{
		MemberCount:    cloneInt(p.Metadata.MemberCount),
		Months:         cloneInt(p.Metadata.Months),
		StartDate:      cloneTime(p.Metadata.StartDate),
		NewMemberLimit: cloneInt(p.Metadata.NewMemberLimit),
		Plan:           p.Metadata.Plan,
	}
	c.ConfirmedAt = cloneTime(p.ConfirmedAt)
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// PaymentUpdate holds the fields an operator may change on a pending payment
type PaymentUpdate struct {
	Amount      *float64 `json:"amount,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// PaymentFilter narrows payment listings. Zero values match everything.
type PaymentFilter struct {
	TenantID string
	Status   PaymentStatus
}

// Admission reasons
const (
	ReasonNoSubscription        = "no subscription"
	ReasonSubscriptionNotActive = "subscription not active"
	ReasonSubscriptionExpired   = "subscription expired"
	ReasonMemberLimitReached    = "member limit reached"
)

// UnlimitedMemberLimit is reported when a tenant has no subscription yet
const UnlimitedMemberLimit = -1

// Admission is the outcome of an admission check
type Admission struct {
	CanAdd       bool   `json:"can_add"`
	CurrentCount int    `json:"current_count"`
	MemberLimit  int    `json:"member_limit"`
	Reason       string `json:"reason,omitempty"`
}

// Unlimited reports whether the tenant is in its pre-subscription grace period
func (a *Admission) Unlimited() bool {
	return a.MemberLimit == UnlimitedMemberLimit
}

// Confirmation is the result of confirming a payment
type Confirmation struct {
	Payment      *Payment      `json:"payment"`
	Subscription *Subscription `json:"subscription"`
	// Created is true when the confirmation created the tenant's subscription
	Created bool `json:"created"`
}
