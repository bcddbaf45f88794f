package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/httputil"
	"github.com/platinummonkey/basekeeper/pkg/members"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/pricing"
)

// Error codes returned in the "code" field of error responses
const (
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeInvalidRecord      = "invalid_record"
	CodeInvariantViolation = "invariant_violation"
	CodeAdmissionDenied    = "admission_denied"
	CodeInvalidQuote       = "invalid_quote"
)

// writeServiceError maps billing errors to HTTP responses. Unknown errors
// are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *billing.AdmissionDeniedError
	switch {
	case errors.As(err, &denied):
		httputil.WriteCodedError(w, http.StatusPaymentRequired, CodeAdmissionDenied, err, denied.Admission)
	case errors.Is(err, billing.ErrNotFound), errors.Is(err, billing.ErrSubscriptionNotFound):
		httputil.WriteCodedError(w, http.StatusNotFound, CodeNotFound, err, nil)
	case errors.Is(err, billing.ErrAlreadyConfirmed), errors.Is(err, billing.ErrNotPending):
		httputil.WriteCodedError(w, http.StatusConflict, CodeConflict, err, nil)
	case errors.Is(err, billing.ErrInvalidRecord), errors.Is(err, members.ErrInvalidMember):
		httputil.WriteCodedError(w, http.StatusBadRequest, CodeInvalidRecord, err, nil)
	case errors.Is(err, pricing.ErrUnknownPlan), errors.Is(err, pricing.ErrInvalidQuote):
		httputil.WriteCodedError(w, http.StatusBadRequest, CodeInvalidQuote, err, nil)
	case errors.Is(err, billing.ErrInvariantViolation):
		httputil.WriteCodedError(w, http.StatusUnprocessableEntity, CodeInvariantViolation, err, nil)
	default:
		observability.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		httputil.WriteInternalError(w, err)
	}
}
