package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the scan every day at 09:00 UTC
const DefaultSchedule = "0 9 * * *"

// Scheduler runs a Scanner on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	scanner  *Scanner
	schedule string
	timeout  time.Duration
	logger   *observability.Logger
}

// NewScheduler registers scanner under the cron expression schedule
// (standard five fields or descriptors such as "@hourly"), evaluated in UTC
func NewScheduler(scanner *Scanner, schedule string, logger *observability.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		scanner:  scanner,
		schedule: schedule,
		timeout:  5 * time.Minute,
		logger:   logger.WithField("schedule", schedule),
	}
	if _, err := s.cron.AddFunc(schedule, s.runScan); err != nil {
		return nil, fmt.Errorf("failed to schedule expiry scan: %w", err)
	}
	return s, nil
}

func (s *Scheduler) runScan() {
	defer observability.RecoverPanic(s.logger, "expiry scan")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Debug("Starting expiry scan")
	if _, err := s.scanner.Scan(ctx); err != nil {
		s.logger.WithError(err).Error("Expiry scan failed")
	}
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// a running scan to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Reminder scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("Reminder scheduler stopped")
	return nil
}
