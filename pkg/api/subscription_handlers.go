package api

import (
	"fmt"
	"net/http"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/httputil"
)

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	sub, err := s.engine.Subscription(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sub)
}

// listSubscriptions lists every tenant's subscription, optionally filtered by ?status=
func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	status := billing.SubscriptionStatus(httputil.ParseQueryString(r, "status", ""))
	if status != "" && !status.Valid() {
		httputil.WriteBadRequest(w, fmt.Sprintf("unknown subscription status %q", status))
		return
	}

	subs, err := s.engine.Subscriptions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if status != "" {
		filtered := subs[:0]
		for _, sub := range subs {
			if sub.Status == status {
				filtered = append(filtered, sub)
			}
		}
		subs = filtered
	}
	httputil.WriteSuccess(w, newListResponse(subs))
}

// adjustEndDates moves the end date of the listed tenants' subscriptions to
// the last second of the given day. Tenants that fail are reported in the
// response; if none succeeded the first error decides the status code.
func (s *Server) adjustEndDates(w http.ResponseWriter, r *http.Request) {
	var req AdjustEndDatesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.TenantIDs) == 0 {
		httputil.WriteBadRequest(w, "tenant_ids is required")
		return
	}
	if !httputil.RequireNonEmpty(w, req.EndDate, "end_date") {
		return
	}

	day, err := httputil.ParseDate(req.EndDate)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	endDate := billing.EndOfDay(day)

	updated, err := s.engine.AdjustEndDates(r.Context(), req.TenantIDs, endDate)
	resp := AdjustEndDatesResponse{
		Updated: updated,
		EndDate: endDate.Format(httputil.DateLayout),
	}
	if err != nil {
		if updated == 0 {
			writeServiceError(w, r, err)
			return
		}
		resp.Errors = err.Error()
	}
	httputil.WriteSuccess(w, resp)
}
