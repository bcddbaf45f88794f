package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/httputil"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/pricing"
)

// createPayment records a priced pending payment
func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.TenantID, "tenant_id") {
		return
	}

	payment, err := s.pricePayment(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Amount != nil {
		payment.Amount = *req.Amount
	}
	if req.Description != nil {
		payment.Description = *req.Description
	}

	created, err := s.ledger.Create(r.Context(), payment)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/payments/"+created.ID)
	httputil.WriteCreated(w, created)
}

// pricePayment builds the payment described by req from the current catalog
func (s *Server) pricePayment(ctx context.Context, req *CreatePaymentRequest) (*billing.Payment, error) {
	catalog := s.pricing.Current()

	switch req.Type {
	case billing.PaymentTypeSubscription:
		plan := req.Plan
		if plan == "" {
			plan = billing.PlanMonthly
		}
		if req.MemberLimit == nil {
			return nil, &billing.ValidationError{Record: "payment", Field: "member_limit", Reason: "is required"}
		}

		var start *time.Time
		if req.StartDate != "" {
			t, err := httputil.ParseDate(req.StartDate)
			if err != nil {
				return nil, &billing.ValidationError{Record: "payment", Field: "start_date", Reason: "must be YYYY-MM-DD or RFC 3339"}
			}
			start = &t
		}
		return catalog.SubscriptionPayment(req.TenantID, plan, *req.MemberLimit, start)

	case billing.PaymentTypeMemberAddition:
		if req.MemberCount == nil {
			return nil, &billing.ValidationError{Record: "payment", Field: "member_count", Reason: "is required"}
		}

		months, err := s.additionMonths(ctx, req.TenantID, req.Months)
		if err != nil {
			return nil, err
		}
		return catalog.MemberAdditionPayment(req.TenantID, *req.MemberCount, months)

	default:
		return nil, &billing.ValidationError{
			Record: "payment",
			Field:  "type",
			Reason: fmt.Sprintf("must be %q or %q", billing.PaymentTypeSubscription, billing.PaymentTypeMemberAddition),
		}
	}
}

// additionMonths defaults a member addition to the rest of the tenant's period
func (s *Server) additionMonths(ctx context.Context, tenantID string, requested *int) (int, error) {
	if requested != nil {
		return *requested, nil
	}

	sub, err := s.engine.Subscription(ctx, tenantID)
	if err != nil && !errors.Is(err, billing.ErrSubscriptionNotFound) {
		return 0, err
	}
	return pricing.RemainingMonths(sub, s.clock.Now()), nil
}

// listPayments lists all payments, optionally filtered by ?status=
func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	status := billing.PaymentStatus(httputil.ParseQueryString(r, "status", ""))
	if status != "" && !status.Valid() {
		httputil.WriteBadRequest(w, fmt.Sprintf("unknown payment status %q", status))
		return
	}

	var (
		payments []*billing.Payment
		err      error
	)
	if status == billing.PaymentStatusPending {
		payments, err = s.ledger.ListPending(r.Context())
	} else {
		payments, err = s.ledger.ListAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if status != "" && status != billing.PaymentStatusPending {
		filtered := payments[:0]
		for _, p := range payments {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		payments = filtered
	}

	httputil.WriteSuccess(w, newListResponse(payments))
}

// listTenantPayments lists one tenant's payments, newest first
func (s *Server) listTenantPayments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	payments, err := s.ledger.ListByTenant(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newListResponse(payments))
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := httputil.ParsePathStringOrError(w, r, "payment_id")
	if !ok {
		return
	}

	payment, err := s.ledger.Get(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, payment)
}

// updatePayment edits the amount or description of a pending payment
func (s *Server) updatePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := httputil.ParsePathStringOrError(w, r, "payment_id")
	if !ok {
		return
	}

	var req UpdatePaymentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Amount == nil && req.Description == nil {
		httputil.WriteBadRequest(w, "amount or description is required")
		return
	}

	payment, err := s.ledger.Update(r.Context(), paymentID, billing.PaymentUpdate{
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, payment)
}

// confirmPayment applies a pending payment to its tenant's subscription
func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := httputil.ParsePathStringOrError(w, r, "payment_id")
	if !ok {
		return
	}

	// The body is optional
	var req ConfirmPaymentRequest
	if r.ContentLength != 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}

	confirmedBy := req.ConfirmedBy
	if confirmedBy == "" {
		confirmedBy = observability.GetOperator(r.Context())
	}
	if confirmedBy == "" {
		httputil.WriteBadRequest(w, "confirmed_by is required (or send the X-Operator header)")
		return
	}

	confirmation, err := s.engine.Confirm(r.Context(), paymentID, confirmedBy)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, confirmation)
}

// deletePayment removes a payment, reversing its effect first if it was confirmed
func (s *Server) deletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := httputil.ParsePathStringOrError(w, r, "payment_id")
	if !ok {
		return
	}

	if err := s.ledger.Delete(r.Context(), paymentID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
