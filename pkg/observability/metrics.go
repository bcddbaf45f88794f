package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ledger and engine metrics
	PaymentsCreatedTotal      *prometheus.CounterVec
	PaymentConfirmationsTotal *prometheus.CounterVec
	PaymentReversalsTotal     *prometheus.CounterVec
	EndDateAdjustmentsTotal   prometheus.Counter

	// Admission metrics
	AdmissionDecisionsTotal *prometheus.CounterVec

	// Storage metrics
	StoreTransactionDuration *prometheus.HistogramVec

	// Reminder metrics
	RemindersSentTotal *prometheus.CounterVec

	// Idempotency metrics
	IdempotentReplaysTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basekeeper_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basekeeper_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		PaymentsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basekeeper_payments_created_total",
				Help: "Total number of payments recorded as pending",
			},
			[]string{"type"},
		),
		PaymentConfirmationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basekeeper_payment_confirmations_total",
				Help: "Total number of payment confirmation attempts by outcome",
			},
			[]string{"type", "outcome"},
		),
		PaymentReversalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basekeeper_payment_reversals_total",
				Help: "Total number of confirmed payment reversals by outcome",
			},
			[]string{"type", "outcome"},
		),
		EndDateAdjustmentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "basekeeper_end_date_adjustments_total",
				Help: "Total number of subscriptions whose end date was set by an operator",
			},
		),

		AdmissionDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basekeeper_admission_decisions_total",
				Help: "Total number of member admission decisions",
			},
			[]string{"decision", "reason"},
		),

		StoreTransactionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basekeeper_store_transaction_duration_seconds",
				Help:    "Duration of per-tenant store transactions",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),

		RemindersSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basekeeper_expiry_reminders_total",
				Help: "Total number of subscription expiry reminders emitted",
			},
			[]string{"days_left"},
		),

		IdempotentReplaysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "basekeeper_idempotent_replays_total",
				Help: "Total number of payment creations answered from an idempotency key",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PaymentsCreatedTotal,
		m.PaymentConfirmationsTotal,
		m.PaymentReversalsTotal,
		m.EndDateAdjustmentsTotal,
		m.AdmissionDecisionsTotal,
		m.StoreTransactionDuration,
		m.RemindersSentTotal,
		m.IdempotentReplaysTotal,
	)

	return m
}

// The Record helpers are safe to call on a nil *Metrics so components can run
// without a registry in tests.

// RecordPaymentCreated counts a new pending payment
func (m *Metrics) RecordPaymentCreated(paymentType string) {
	if m == nil {
		return
	}
	m.PaymentsCreatedTotal.WithLabelValues(paymentType).Inc()
}

// RecordConfirmation counts a confirmation attempt
func (m *Metrics) RecordConfirmation(paymentType, outcome string) {
	if m == nil {
		return
	}
	m.PaymentConfirmationsTotal.WithLabelValues(paymentType, outcome).Inc()
}

// RecordReversal counts a reversal attempt
func (m *Metrics) RecordReversal(paymentType, outcome string) {
	if m == nil {
		return
	}
	m.PaymentReversalsTotal.WithLabelValues(paymentType, outcome).Inc()
}

// RecordEndDateAdjustment counts an operator end-date change
func (m *Metrics) RecordEndDateAdjustment() {
	if m == nil {
		return
	}
	m.EndDateAdjustmentsTotal.Inc()
}

// RecordAdmission counts an admission decision
func (m *Metrics) RecordAdmission(allowed bool, reason string) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.AdmissionDecisionsTotal.WithLabelValues(decision, reason).Inc()
}

// ObserveTransaction records how long a tenant transaction took
func (m *Metrics) ObserveTransaction(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.StoreTransactionDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordReminder counts an emitted expiry reminder
func (m *Metrics) RecordReminder(daysLeft int) {
	if m == nil {
		return
	}
	m.RemindersSentTotal.WithLabelValues(strconv.Itoa(daysLeft)).Inc()
}

// RecordIdempotentReplay counts a replayed payment creation
func (m *Metrics) RecordIdempotentReplay() {
	if m == nil {
		return
	}
	m.IdempotentReplaysTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by their mux route template so tenant and payment
// ids do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
