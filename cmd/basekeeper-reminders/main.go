package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/config"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/reminders"
	"github.com/platinummonkey/basekeeper/pkg/storage"
	"github.com/platinummonkey/basekeeper/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

// Options holds the reminder service flags
type Options struct {
	RunOnce  bool
	Date     string
	Schedule string
	LogLevel string
}

// Reminder service: scans subscriptions for upcoming expiries on a cron
// schedule, or once with --run-once
func main() {
	opts := parseFlags()
	logger := setupLogger(opts.LogLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Storage.Type == storage.TypeMemory {
		logger.Fatal("Reminders need a persistent store, set BASEKEEPER_STORAGE_TYPE to postgres or sqlite")
	}

	// Packages log structured JSON to stderr; this command's own messages go through logrus.
	pkgLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr).WithField("service", "basekeeper-reminders")

	connCfg, err := postgres.ConnectionConfigFromStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Invalid storage configuration: %v", err)
	}
	conns, err := postgres.NewConnectionManager(connCfg, pkgLogger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer conns.Close()

	store := postgres.NewStore(conns.Primary(), conns.Dialect(), postgres.WithReadReplicas(conns.Replica))

	var clock billing.Clock = billing.SystemClock{}
	if opts.Date != "" {
		if !opts.RunOnce {
			logger.Fatal("--date is only valid with --run-once")
		}
		date, err := time.Parse("2006-01-02", opts.Date)
		if err != nil {
			logger.Fatalf("Invalid date format: %v", err)
		}
		// Scan as of the start of the business day
		clock = billing.FixedClock(date.Add(9 * time.Hour))
	}

	engine := billing.NewEngine(store, clock, pkgLogger, nil)
	scanner := reminders.NewScanner(engine, logrusNotifier{logger: logger}, clock, pkgLogger,
		reminders.WithWarningDays(cfg.Reminders.WarningDays...),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.RunOnce {
		logger.Infof("Running expiry scan as of %s", clock.Now().Format(time.RFC3339))
		sent, err := scanner.Scan(ctx)
		if err != nil {
			logger.Fatalf("Expiry scan failed after %d reminders: %v", sent, err)
		}
		logger.Infof("Expiry scan completed, %d reminders sent", sent)
		return
	}

	schedule := opts.Schedule
	if schedule == "" {
		schedule = cfg.Reminders.Schedule
	}
	scheduler, err := reminders.NewScheduler(scanner, schedule, pkgLogger)
	if err != nil {
		logger.Fatalf("Failed to schedule expiry scan: %v", err)
	}

	logger.Infof("Reminder service started with schedule %q and warning days %v", schedule, cfg.Reminders.WarningDays)
	if err := scheduler.Run(ctx); err != nil {
		logger.Fatalf("Reminder scheduler failed: %v", err)
	}
	logger.Info("Reminder service stopped")
}

func parseFlags() *Options {
	opts := &Options{}

	flag.BoolVar(&opts.RunOnce, "run-once", false, "Run the expiry scan once and exit")
	flag.StringVar(&opts.Date, "date", "", "Scan as of this day (YYYY-MM-DD). Only used with --run-once")
	flag.StringVar(&opts.Schedule, "schedule", "", "Cron schedule overriding BASEKEEPER_REMINDERS_SCHEDULE")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	return opts
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// logrusNotifier prints one line per expiring subscription
type logrusNotifier struct {
	logger *logrus.Logger
}

func (n logrusNotifier) NotifyExpiring(ctx context.Context, reminder reminders.Reminder) error {
	sub := reminder.Subscription
	if sub == nil {
		return fmt.Errorf("reminder without subscription")
	}
	n.logger.WithFields(logrus.Fields{
		"tenant_id":    sub.TenantID,
		"plan":         sub.Plan,
		"member_limit": sub.MemberLimit,
		"end_date":     sub.EndDate.Format("2006-01-02"),
	}).Infof("Subscription expires in %d day(s)", reminder.DaysLeft)
	return nil
}
