// Package observability provides structured logging, Prometheus metrics, health
// probes and OpenTelemetry tracing for basekeeper.
//
// # Structured Logging
//
// Logger wraps log/slog with a JSON handler:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithPayment(payment.ID, payment.TenantID).Info("Payment confirmed")
//
// Request-scoped loggers carry the request id, the operator and, when a span
// is recording, its trace and span ids:
//
//	observability.FromContext(ctx).WithError(err).Error("Confirmation failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordConfirmation("subscription", "confirmed")
//
// Recorders are no-ops on a nil *Metrics so components run without a registry
// in tests. HTTPMetricsMiddleware labels requests by mux route template.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("database", true, observability.DatabaseCheck(db))
//	checker.AddCheck("redis", false, observability.RedisCheck(client))
//	observability.RegisterHealthRoutes(mux, checker)
//
// A failing critical check makes /health/ready answer 503; a failing optional
// one reports "degraded" with 200.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "basekeeper",
//		Insecure:    true,
//	}, logger)
//	shutdown.Register("otel", func(ctx context.Context) error {
//		return observability.ShutdownOTel(ctx, providers, logger)
//	})
//
// # Graceful Shutdown
//
// ShutdownManager runs registered steps in order once its Run context is done.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
