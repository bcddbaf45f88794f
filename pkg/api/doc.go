// Package api provides the HTTP REST API of basekeeper.
//
// # Overview
//
// The API exposes the subscription and payment lifecycle of tenants ("bases")
// to the back-office: recording and confirming payments, reversing them,
// checking member admission and quoting prices from the plan catalog.
//
// # Architecture
//
// The API is built on gorilla/mux. Handlers are thin: they decode requests,
// call pkg/billing and map its errors to status codes (errors.go). Route-aware
// middleware (metrics, tenant context, rate limiting, idempotency) is
// installed with router.Use; Handler wraps everything in the request id,
// logging, recovery, CORS and operator middleware plus otelhttp.
//
//	server := api.NewServer(api.Config{
//		Engine:    engine,
//		Ledger:    ledger,
//		Admission: admission,
//		Pricing:   watcher,
//		Logger:    logger,
//		Metrics:   metrics,
//	})
//	http.ListenAndServe(":8080", server.Handler())
//
// # API Endpoints
//
//	GET    /v1/tenants/{tenant_id}/admission      admission decision
//	POST   /v1/tenants/{tenant_id}/members        admit a member (402 when denied)
//	GET    /v1/tenants/{tenant_id}/subscription   current subscription
//	GET    /v1/tenants/{tenant_id}/payments       tenant payments, newest first
//	GET    /v1/subscriptions                      all subscriptions (?status=)
//	POST   /v1/subscriptions/end-date             bulk end date adjustment
//	POST   /v1/payments                           record a priced payment (Idempotency-Key)
//	GET    /v1/payments                           all payments (?status=pending)
//	GET    /v1/payments/{payment_id}              one payment
//	PATCH  /v1/payments/{payment_id}              edit a pending payment
//	DELETE /v1/payments/{payment_id}              delete, reversing a confirmed payment
//	POST   /v1/payments/{payment_id}/confirm      confirm and apply to the subscription
//	GET    /v1/quotes/subscription                ?plan=&members=
//	GET    /v1/quotes/member-addition             ?members=&months= or &tenant_id=
//
// # Errors
//
// Error bodies are {"error": ..., "code": ..., "details": ...}:
//
//	404 not_found            payment or subscription missing
//	409 conflict             payment already confirmed or no longer pending
//	400 invalid_record       request or record fails validation
//	400 invalid_quote        unknown plan or non-positive quantities
//	422 invariant_violation  the change would break a subscription invariant
//	402 admission_denied     details carry the admission decision
//
// # Related Packages
//
//   - pkg/billing: engine, ledger and admission controller
//   - pkg/pricing: plan catalog and quotes
//   - pkg/middleware: operator, idempotency and rate limit middleware
package api
