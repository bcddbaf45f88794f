package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/members"
	"github.com/platinummonkey/basekeeper/pkg/pricing"
	"github.com/stretchr/testify/assert"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"payment not found", billing.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"wrapped subscription not found", fmt.Errorf("cannot add members: %w", billing.ErrSubscriptionNotFound), http.StatusNotFound, CodeNotFound},
		{"already confirmed", billing.ErrAlreadyConfirmed, http.StatusConflict, CodeConflict},
		{"not pending", fmt.Errorf("%w: status is expired", billing.ErrNotPending), http.StatusConflict, CodeConflict},
		{"validation", &billing.ValidationError{Record: "payment", Field: "amount", Reason: "must not be negative"}, http.StatusBadRequest, CodeInvalidRecord},
		{"invalid member", fmt.Errorf("%w: name is required", members.ErrInvalidMember), http.StatusBadRequest, CodeInvalidRecord},
		{"unknown plan", pricing.ErrUnknownPlan, http.StatusBadRequest, CodeInvalidQuote},
		{"invariant", &billing.InvariantError{TenantID: "base-1", Detail: "negative"}, http.StatusUnprocessableEntity, CodeInvariantViolation},
		{"joined invariant", errors.Join(&billing.InvariantError{TenantID: "base-1"}), http.StatusUnprocessableEntity, CodeInvariantViolation},
		{"admission denied", &billing.AdmissionDeniedError{TenantID: "base-1"}, http.StatusPaymentRequired, CodeAdmissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
		})
	}
}

func TestWriteServiceError_Internal(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writeServiceError(w, req.WithContext(discardLoggerContext(req)), errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}
