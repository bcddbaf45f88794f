package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/httputil"
	"github.com/platinummonkey/basekeeper/pkg/middleware"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/pricing"
	"github.com/platinummonkey/basekeeper/pkg/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxBodyBytes bounds request bodies
const DefaultMaxBodyBytes = 1 << 20

// Config holds the dependencies of the API server
type Config struct {
	Engine    *billing.Engine
	Ledger    *billing.Ledger
	Admission *billing.AdmissionController
	Pricing   pricing.Source
	Clock     billing.Clock
	Logger    *observability.Logger
	Metrics   *observability.Metrics

	// Idempotency stores responses of retried POST requests. Optional.
	Idempotency storage.IdempotencyStore
	// RateLimiter limits write requests per operator. Optional.
	RateLimiter middleware.Limiter

	CORSOrigins  []string
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	engine    *billing.Engine
	ledger    *billing.Ledger
	admission *billing.AdmissionController
	pricing   pricing.Source
	clock     billing.Clock
	logger    *observability.Logger
	metrics   *observability.Metrics

	idempotency  storage.IdempotencyStore
	limiter      middleware.Limiter
	corsOrigins  []string
	maxBodyBytes int64

	router *mux.Router
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	s := &Server{
		engine:       cfg.Engine,
		ledger:       cfg.Ledger,
		admission:    cfg.Admission,
		pricing:      cfg.Pricing,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		idempotency:  cfg.Idempotency,
		limiter:      cfg.RateLimiter,
		corsOrigins:  cfg.CORSOrigins,
		maxBodyBytes: cfg.MaxBodyBytes,
		router:       mux.NewRouter(),
	}
	if s.clock == nil {
		s.clock = billing.SystemClock{}
	}
	if s.pricing == nil {
		s.pricing = pricing.Static{Catalog: pricing.DefaultCatalog()}
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Route-aware middleware runs after matching so mux vars and templates are set
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(middleware.TenantMiddleware)
	if s.limiter != nil {
		s.router.Use(middleware.RateLimitMiddleware(s.limiter))
	}
	s.router.Use(middleware.IdempotencyMiddleware(s.idempotency, s.metrics))

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Members and admission
	v1.HandleFunc("/tenants/{tenant_id}/admission", s.getAdmission).Methods("GET")
	v1.HandleFunc("/tenants/{tenant_id}/members", s.admitMember).Methods("POST")

	// Subscriptions
	v1.HandleFunc("/tenants/{tenant_id}/subscription", s.getSubscription).Methods("GET")
	v1.HandleFunc("/subscriptions", s.listSubscriptions).Methods("GET")
	v1.HandleFunc("/subscriptions/end-date", s.adjustEndDates).Methods("POST")

	// Payments
	v1.HandleFunc("/tenants/{tenant_id}/payments", s.listTenantPayments).Methods("GET")
	v1.HandleFunc("/payments", s.createPayment).Methods("POST")
	v1.HandleFunc("/payments", s.listPayments).Methods("GET")
	v1.HandleFunc("/payments/{payment_id}", s.getPayment).Methods("GET")
	v1.HandleFunc("/payments/{payment_id}", s.updatePayment).Methods("PATCH")
	v1.HandleFunc("/payments/{payment_id}", s.deletePayment).Methods("DELETE")
	v1.HandleFunc("/payments/{payment_id}/confirm", s.confirmPayment).Methods("POST")

	// Quotes
	v1.HandleFunc("/quotes/subscription", s.quoteSubscription).Methods("GET")
	v1.HandleFunc("/quotes/member-addition", s.quoteMemberAddition).Methods("GET")
}

// ServeHTTP implements http.Handler without the request middleware chain
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in the request middleware chain and
// OpenTelemetry instrumentation
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(s.corsOrigins),
		middleware.OperatorMiddleware,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(s.maxBodyBytes),
	)
	return otelhttp.NewHandler(chain(s.router), "basekeeper-api")
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
