package api

import (
	"net/http"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/httputil"
)

// quoteSubscription prices ?plan= for ?members= seats
func (s *Server) quoteSubscription(w http.ResponseWriter, r *http.Request) {
	plan := billing.Plan(httputil.ParseQueryString(r, "plan", string(billing.PlanMonthly)))
	memberLimit, err := httputil.ParseQueryInt(r, "members", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	quote, err := s.pricing.Current().QuoteSubscription(plan, memberLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, quote)
}

// quoteMemberAddition prices ?members= extra seats. Without ?months= the
// quote covers what is left of ?tenant_id='s current period, or one month.
func (s *Server) quoteMemberAddition(w http.ResponseWriter, r *http.Request) {
	count, err := httputil.ParseQueryInt(r, "members", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	months := 1
	if r.URL.Query().Has("months") {
		months, err = httputil.ParseQueryInt(r, "months", 1)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
	} else if tenantID := httputil.ParseQueryString(r, "tenant_id", ""); tenantID != "" {
		months, err = s.additionMonths(r.Context(), tenantID, nil)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	quote, err := s.pricing.Current().QuoteMemberAddition(count, months)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, quote)
}
