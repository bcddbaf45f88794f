// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and common HTTP middleware patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, subscription)
//	httputil.WriteCreated(w, payment)
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteConflict(w, "payment already confirmed")
//	httputil.WriteCodedError(w, http.StatusPaymentRequired, "admission_denied", err, admission)
//
// Internal errors never echo their cause to the client.
//
// # Request Parsing
//
//	var req CreatePaymentRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
//	members, err := httputil.ParseQueryInt(r, "members", 1)
//	end, err := httputil.ParseDate("2024-12-31")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: operator, tenant and idempotency middleware
package httputil
