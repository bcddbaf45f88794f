package billing

import "fmt"

// Validate checks a subscription against its schema and invariants. Stores
// call it on every record they decode or write.
func (s *Subscription) Validate() error {
	if s.TenantID == "" {
		return &ValidationError{Record: "subscription", Field: "tenant_id", Reason: "is required"}
	}
	if !s.Plan.Valid() {
		return &ValidationError{Record: "subscription", Field: "plan", Reason: fmt.Sprintf("has unknown value %q", s.Plan)}
	}
	if !s.Status.Valid() {
		return &ValidationError{Record: "subscription", Field: "status", Reason: fmt.Sprintf("has unknown value %q", s.Status)}
	}
	if s.Amount < 0 {
		return &ValidationError{Record: "subscription", Field: "amount", Reason: "must not be negative"}
	}
	return s.checkInvariants()
}

// checkInvariants reports the state the engine must never persist
func (s *Subscription) checkInvariants() error {
	if s.MemberLimit < 0 {
		return &InvariantError{TenantID: s.TenantID, Detail: fmt.Sprintf("member limit %d is negative", s.MemberLimit)}
	}
	if s.EndDate.Before(s.StartDate) {
		return &InvariantError{TenantID: s.TenantID, Detail: fmt.Sprintf("end date %s precedes start date %s",
			s.EndDate.Format("2006-01-02"), s.StartDate.Format("2006-01-02"))}
	}
	return nil
}

// Validate checks a payment against its schema
func (p *Payment) Validate() error {
	if p.ID == "" {
		return &ValidationError{Record: "payment", Field: "id", Reason: "is required"}
	}
	if p.TenantID == "" {
		return &ValidationError{Record: "payment", Field: "tenant_id", Reason: "is required"}
	}
	if !p.Type.Valid() {
		return &ValidationError{Record: "payment", Field: "type", Reason: fmt.Sprintf("has unknown value %q", p.Type)}
	}
	if !p.Status.Valid() {
		return &ValidationError{Record: "payment", Field: "status", Reason: fmt.Sprintf("has unknown value %q", p.Status)}
	}
	if p.Amount < 0 {
		return &ValidationError{Record: "payment", Field: "amount", Reason: "must not be negative"}
	}
	if p.Status == PaymentStatusConfirmed && p.ConfirmedAt == nil {
		return &ValidationError{Record: "payment", Field: "confirmed_at", Reason: "is required on confirmed payments"}
	}
	return p.Metadata.validate()
}

func (m PaymentMetadata) validate() error {
	if m.MemberCount != nil && *m.MemberCount < 0 {
		return &ValidationError{Record: "payment", Field: "metadata.member_count", Reason: "must not be negative"}
	}
	if m.Months != nil && *m.Months < 1 {
		return &ValidationError{Record: "payment", Field: "metadata.months", Reason: "must be at least 1"}
	}
	if m.NewMemberLimit != nil && *m.NewMemberLimit < 0 {
		return &ValidationError{Record: "payment", Field: "metadata.new_member_limit", Reason: "must not be negative"}
	}
	if m.Plan != "" && !m.Plan.Valid() {
		return &ValidationError{Record: "payment", Field: "metadata.plan", Reason: fmt.Sprintf("has unknown value %q", m.Plan)}
	}
	return nil
}
