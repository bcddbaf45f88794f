package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/basekeeper/pkg/contextkeys"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/stretchr/testify/assert"
)

func TestOperatorMiddleware(t *testing.T) {
	var operator string
	handler := OperatorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator = observability.GetOperator(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/pay-1/confirm", nil)
	req.Header.Set(OperatorHeader, "  ana@base.org ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "ana@base.org", operator)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, operator)
}

func TestTenantMiddleware(t *testing.T) {
	var tenantID string
	router := mux.NewRouter()
	router.Use(TenantMiddleware)
	router.HandleFunc("/v1/tenants/{tenant_id}/admission", func(w http.ResponseWriter, r *http.Request) {
		tenantID = contextkeys.GetTenantID(r.Context())
	})
	router.HandleFunc("/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		tenantID = contextkeys.GetTenantID(r.Context())
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/tenants/base-9/admission", nil))
	assert.Equal(t, "base-9", tenantID)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	assert.Empty(t, tenantID)
}
