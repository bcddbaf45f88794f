package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/api"
	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/config"
	"github.com/platinummonkey/basekeeper/pkg/middleware"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/pricing"
	"github.com/platinummonkey/basekeeper/pkg/reminders"
	"github.com/platinummonkey/basekeeper/pkg/storage"
	"github.com/platinummonkey/basekeeper/pkg/storage/memory"
	"github.com/platinummonkey/basekeeper/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "basekeeper: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "basekeeper").
		WithField("version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("basekeeper exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	health := observability.NewHealthChecker(version)

	// Until the shutdown manager owns them, components opened below are
	// released here if startup fails.
	started := false
	defer func() {
		if !started {
			_ = shutdown.Shutdown(context.Background())
		}
	}()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	store, closeStore, err := openStore(ctx, cfg.Storage, health, metrics, logger)
	if err != nil {
		return err
	}

	var redisClient *postgres.RedisClient
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		health.AddCheck("redis", false, observability.RedisCheck(redisClient.GetClient()))
		logger.Info("Redis connected, sharing idempotency keys and rate limits")
	}

	var idempotency storage.IdempotencyStore
	if redisClient != nil {
		idempotency = postgres.NewRedisIdempotencyStore(redisClient, cfg.Storage.IdempotencyTTL)
	} else {
		idempotency = memory.NewIdempotencyCache(cfg.Storage.IdempotencyCacheSize, cfg.Storage.IdempotencyTTL)
	}

	var limiter middleware.Limiter
	var localLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limitCfg := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowDuration:    cfg.RateLimit.Window,
			BurstSize:         cfg.RateLimit.Burst,
		}
		if redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient.GetClient(), limitCfg, "")
		} else {
			localLimiter = middleware.NewRateLimiter(limitCfg)
			limiter = localLimiter
		}
	}

	var source pricing.Source = pricing.Static{Catalog: pricing.DefaultCatalog()}
	var watcher *pricing.Watcher
	if cfg.Pricing.CatalogPath != "" {
		watcher, err = pricing.NewWatcher(cfg.Pricing.CatalogPath, logger)
		if err != nil {
			return fmt.Errorf("failed to load pricing catalog: %w", err)
		}
		source = watcher
	}

	clock := billing.SystemClock{}
	engine := billing.NewEngine(store, clock, logger, metrics)
	engine.AddListener(receiptLogger(logger))
	ledger := billing.NewLedger(store, engine, clock, logger, metrics)
	admission := billing.NewAdmissionController(store, clock, logger, metrics)

	var scheduler *reminders.Scheduler
	if cfg.Reminders.Enabled {
		scanner := reminders.NewScanner(engine, reminders.LogNotifier{Logger: logger}, clock, logger,
			reminders.WithWarningDays(cfg.Reminders.WarningDays...),
			reminders.WithMetrics(metrics),
		)
		scheduler, err = reminders.NewScheduler(scanner, cfg.Reminders.Schedule, logger)
		if err != nil {
			return err
		}
	}

	server := api.NewServer(api.Config{
		Engine:       engine,
		Ledger:       ledger,
		Admission:    admission,
		Pricing:      source,
		Clock:        clock,
		Logger:       logger,
		Metrics:      metrics,
		Idempotency:  idempotency,
		RateLimiter:  limiter,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servers stop first so nothing new reaches the store while it closes.
	shutdown.RegisterServer("api server", apiServer)
	shutdown.RegisterServer("health server", healthServer)
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("store", func(context.Context) error { return closeStore() })
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	started = true

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serve(apiServer, logger.WithField("server", "api")) })
	g.Go(func() error { return serve(healthServer, logger.WithField("server", "health")) })
	g.Go(func() error { return shutdown.Run(gctx) })

	if scheduler != nil {
		g.Go(func() error { return scheduler.Run(gctx) })
	}
	if watcher != nil && cfg.Pricing.Watch {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	if localLimiter != nil {
		localLimiter.StartCleanup(gctx)
	}

	logger.WithFields(map[string]interface{}{
		"storage": cfg.Storage.Type,
		"addr":    apiServer.Addr,
		"health":  healthServer.Addr,
	}).Info("basekeeper started")

	return g.Wait()
}

// openStore opens the configured backend, runs migrations for SQL backends
// and registers the store's readiness check
func openStore(ctx context.Context, cfg storage.Config, health *observability.HealthChecker, metrics *observability.Metrics, logger *observability.Logger) (billing.Store, func() error, error) {
	if cfg.Type == storage.TypeMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		health.AddCheck("database", true, store.HealthCheck)
		return store, func() error { return nil }, nil
	}

	connCfg, err := postgres.ConnectionConfigFromStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	conns, err := postgres.NewConnectionManager(connCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, conns.Primary(), conns.Dialect(), logger); err != nil {
		_ = conns.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	conns.StartHealthCheckRoutine(ctx, 30*time.Second)
	health.AddCheck("database", true, observability.DatabaseCheck(conns.Primary()))

	store := postgres.NewStore(conns.Primary(), conns.Dialect(),
		postgres.WithReadReplicas(conns.Replica),
		postgres.WithMetrics(metrics),
	)
	return store, conns.Close, nil
}

func serve(server *http.Server, logger *observability.Logger) error {
	logger.WithField("addr", server.Addr).Info("Listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", server.Addr, err)
	}
	return nil
}

// receiptLogger records every applied payment. Receipt delivery plugs in as
// another listener.
func receiptLogger(logger *observability.Logger) billing.ConfirmationListener {
	return billing.ConfirmationListenerFunc(func(ctx context.Context, c *billing.Confirmation) error {
		logger.WithPayment(c.Payment.ID, c.Payment.TenantID).WithFields(map[string]interface{}{
			"amount":       c.Payment.Amount,
			"member_limit": c.Subscription.MemberLimit,
			"end_date":     c.Subscription.EndDate.Format(time.RFC3339),
			"created":      c.Created,
		}).Info("Payment applied")
		return nil
	})
}
