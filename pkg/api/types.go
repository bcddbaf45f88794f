package api

import (
	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/members"
)

// CreatePaymentRequest asks for a priced pending payment.
//
// Subscription payments need Plan (default monthly) and MemberLimit.
// Member additions need MemberCount; Months defaults to what is left of the
// tenant's current period. Amount and Description override the priced values.
type CreatePaymentRequest struct {
	TenantID    string              `json:"tenant_id"`
	Type        billing.PaymentType `json:"type"`
	Plan        billing.Plan        `json:"plan,omitempty"`
	MemberLimit *int                `json:"member_limit,omitempty"`
	MemberCount *int                `json:"member_count,omitempty"`
	Months      *int                `json:"months,omitempty"`
	StartDate   string              `json:"start_date,omitempty"`
	Amount      *float64            `json:"amount,omitempty"`
	Description *string             `json:"description,omitempty"`
}

// UpdatePaymentRequest changes a pending payment
type UpdatePaymentRequest struct {
	Amount      *float64 `json:"amount,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// ConfirmPaymentRequest records who confirmed a payment. When ConfirmedBy is
// empty the X-Operator header is used.
type ConfirmPaymentRequest struct {
	ConfirmedBy string `json:"confirmed_by,omitempty"`
}

// AdmitMemberRequest enrolls a member in a tenant
type AdmitMemberRequest struct {
	Name   string         `json:"name"`
	Email  string         `json:"email,omitempty"`
	Status members.Status `json:"status,omitempty"`
}

// AdmitMemberResponse is returned when a member was admitted
type AdmitMemberResponse struct {
	Member    *members.Member    `json:"member"`
	Admission *billing.Admission `json:"admission"`
}

// AdjustEndDatesRequest sets the end date of several subscriptions
type AdjustEndDatesRequest struct {
	TenantIDs []string `json:"tenant_ids"`
	EndDate   string   `json:"end_date"`
}

// AdjustEndDatesResponse reports how many subscriptions were changed
type AdjustEndDatesResponse struct {
	Updated int    `json:"updated"`
	EndDate string `json:"end_date"`
	Errors  string `json:"errors,omitempty"`
}

// ListResponse wraps collections
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
