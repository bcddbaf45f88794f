package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/basekeeper/pkg/contextkeys"
	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// OperatorHeader names the staff member acting on a request
const OperatorHeader = "X-Operator"

// TenantVar is the route variable holding the tenant id
const TenantVar = "tenant_id"

// OperatorMiddleware records the X-Operator header in the request context.
// Requests without the header pass through unchanged.
func OperatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator := strings.TrimSpace(r.Header.Get(OperatorHeader))
		if operator == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := observability.WithOperator(r.Context(), operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantMiddleware adds the tenant id from the matched route to the request
// context and tags the request logger with it. It must be installed with
// router.Use so that route variables are available.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mux.Vars(r)[TenantVar]
		if !ok || tenantID == "" {
			// No tenant context needed
			next.ServeHTTP(w, r)
			return
		}

		ctx := contextkeys.WithTenantID(r.Context(), tenantID)
		ctx = observability.WithLogger(ctx, observability.GetLogger(ctx).WithTenant(tenantID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
