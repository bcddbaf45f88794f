package reminders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// DefaultWarningDays are the offsets before EndDate at which tenants are reminded
var DefaultWarningDays = []int{7, 3, 1}

// Reminder tells a tenant its subscription ends in DaysLeft days
type Reminder struct {
	Subscription *billing.Subscription
	DaysLeft     int
}

// Notifier delivers reminders
type Notifier interface {
	NotifyExpiring(ctx context.Context, reminder Reminder) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, reminder Reminder) error

// NotifyExpiring calls f
func (f NotifierFunc) NotifyExpiring(ctx context.Context, reminder Reminder) error {
	return f(ctx, reminder)
}

// LogNotifier writes one structured log line per reminder
type LogNotifier struct {
	Logger *observability.Logger
}

// NotifyExpiring logs the reminder
func (n LogNotifier) NotifyExpiring(ctx context.Context, reminder Reminder) error {
	n.Logger.WithTenant(reminder.Subscription.TenantID).WithFields(map[string]interface{}{
		"days_left": reminder.DaysLeft,
		"end_date":  reminder.Subscription.EndDate.Format(time.RFC3339),
		"plan":      string(reminder.Subscription.Plan),
	}).Info("Subscription expiring soon")
	return nil
}

// SubscriptionLister lists every tenant's subscription
type SubscriptionLister interface {
	Subscriptions(ctx context.Context) ([]*billing.Subscription, error)
}

// Scanner finds subscriptions about to expire
type Scanner struct {
	lister      SubscriptionLister
	notifier    Notifier
	clock       billing.Clock
	warningDays []int
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// Option configures a Scanner
type Option func(*Scanner)

// WithWarningDays replaces DefaultWarningDays. Non-positive offsets are ignored.
func WithWarningDays(days ...int) Option {
	return func(s *Scanner) {
		s.warningDays = normalizeDays(days)
	}
}

// WithMetrics counts sent reminders
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Scanner) { s.metrics = metrics }
}

// NewScanner creates a Scanner
func NewScanner(lister SubscriptionLister, notifier Notifier, clock billing.Clock, logger *observability.Logger, opts ...Option) *Scanner {
	if clock == nil {
		clock = billing.SystemClock{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Scanner{
		lister:      lister,
		notifier:    notifier,
		clock:       clock,
		warningDays: normalizeDays(DefaultWarningDays),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan notifies every active subscription whose remaining time falls in the
// day window [d-1, d) of a warning offset d. A failed notification does not
// stop the scan; all failures are returned joined. It returns the number of
// reminders delivered.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	subs, err := s.lister.Subscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	now := s.clock.Now()
	sent := 0
	var errs []error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		days, ok := s.daysLeft(sub, now)
		if !ok {
			continue
		}
		if err := s.notifier.NotifyExpiring(ctx, Reminder{Subscription: sub, DaysLeft: days}); err != nil {
			s.logger.WithTenant(sub.TenantID).WithError(err).Warn("Failed to send expiry reminder")
			errs = append(errs, fmt.Errorf("tenant %s: %w", sub.TenantID, err))
			continue
		}
		s.metrics.RecordReminder(days)
		sent++
	}

	s.logger.WithFields(map[string]interface{}{
		"subscriptions": len(subs),
		"reminders":     sent,
	}).Info("Expiry scan completed")
	return sent, errors.Join(errs...)
}

// daysLeft returns the warning offset sub falls under at now
func (s *Scanner) daysLeft(sub *billing.Subscription, now time.Time) (int, bool) {
	if sub.Status != billing.SubscriptionStatusActive {
		return 0, false
	}
	remaining := sub.EndDate.Sub(now)
	if remaining < 0 {
		return 0, false
	}
	const day = 24 * time.Hour
	for _, d := range s.warningDays {
		if remaining >= time.Duration(d-1)*day && remaining < time.Duration(d)*day {
			return d, true
		}
	}
	return 0, false
}

func normalizeDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d <= 0 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
