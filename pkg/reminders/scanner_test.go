package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type listerFunc func(ctx context.Context) ([]*billing.Subscription, error)

func (f listerFunc) Subscriptions(ctx context.Context) ([]*billing.Subscription, error) {
	return f(ctx)
}

func staticLister(subs ...*billing.Subscription) SubscriptionLister {
	return listerFunc(func(ctx context.Context) ([]*billing.Subscription, error) {
		return subs, nil
	})
}

// recordingNotifier collects reminders
type recordingNotifier struct {
	mu        sync.Mutex
	reminders []Reminder
	failFor   map[string]error
}

func (n *recordingNotifier) NotifyExpiring(ctx context.Context, reminder Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failFor[reminder.Subscription.TenantID]; err != nil {
		return err
	}
	n.reminders = append(n.reminders, reminder)
	return nil
}

func (n *recordingNotifier) daysByTenant() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]int, len(n.reminders))
	for _, r := range n.reminders {
		out[r.Subscription.TenantID] = r.DaysLeft
	}
	return out
}

func endingIn(tenantID string, remaining time.Duration) *billing.Subscription {
	return &billing.Subscription{
		TenantID:  tenantID,
		Plan:      billing.PlanMonthly,
		Status:    billing.SubscriptionStatusActive,
		StartDate: scanNow.AddDate(0, -1, 0),
		EndDate:   scanNow.Add(remaining),
	}
}

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestScanner_Windows(t *testing.T) {
	day := 24 * time.Hour
	expired := endingIn("expired-status", 2*day)
	expired.Status = billing.SubscriptionStatusExpired

	subs := []*billing.Subscription{
		endingIn("seven", 6*day+time.Hour),
		endingIn("seven-edge", 6*day),
		endingIn("eight", 7*day),
		endingIn("five", 5*day),
		endingIn("three", 2*day+12*time.Hour),
		endingIn("one", 3*time.Hour),
		endingIn("ends-now", 0),
		endingIn("ended", -time.Hour),
		expired,
	}

	notifier := &recordingNotifier{}
	scanner := NewScanner(staticLister(subs...), notifier, billing.FixedClock(scanNow), quietLogger())

	sent, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sent)
	assert.Equal(t, map[string]int{
		"seven":      7,
		"seven-edge": 7,
		"three":      3,
		"one":        1,
		"ends-now":   1,
	}, notifier.daysByTenant())
}

func TestScanner_CustomWarningDays(t *testing.T) {
	day := 24 * time.Hour
	notifier := &recordingNotifier{}
	scanner := NewScanner(
		staticLister(endingIn("fourteen", 13*day+time.Hour), endingIn("seven", 6*day+time.Hour)),
		notifier, billing.FixedClock(scanNow), quietLogger(),
		WithWarningDays(14, 0, -3, 14),
	)

	sent, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, map[string]int{"fourteen": 14}, notifier.daysByTenant())
}

func TestScanner_NotifierFailuresAreJoined(t *testing.T) {
	day := 24 * time.Hour
	boom := errors.New("gateway down")
	notifier := &recordingNotifier{failFor: map[string]error{"a": boom}}
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	scanner := NewScanner(
		staticLister(endingIn("a", 2*day+time.Hour), endingIn("b", 2*day+time.Hour)),
		notifier, billing.FixedClock(scanNow), quietLogger(),
		WithMetrics(metrics),
	)

	sent, err := scanner.Scan(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "tenant a")
	assert.Equal(t, 1, sent)
	assert.Equal(t, map[string]int{"b": 3}, notifier.daysByTenant())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RemindersSentTotal.WithLabelValues("3")))
}

func TestScanner_ListerFailure(t *testing.T) {
	lister := listerFunc(func(ctx context.Context) ([]*billing.Subscription, error) {
		return nil, errors.New("db down")
	})
	scanner := NewScanner(lister, &recordingNotifier{}, billing.FixedClock(scanNow), quietLogger())

	_, err := scanner.Scan(context.Background())
	assert.ErrorContains(t, err, "failed to list subscriptions")
}

func TestScanner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(staticLister(endingIn("a", time.Hour)), &recordingNotifier{}, billing.FixedClock(scanNow), quietLogger())
	sent, err := scanner.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sent)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	notifier := LogNotifier{Logger: observability.NewLogger(observability.InfoLevel, &buf)}

	err := notifier.NotifyExpiring(context.Background(), Reminder{Subscription: endingIn("base-9", time.Hour), DaysLeft: 1})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Subscription expiring soon", entry["msg"])
	assert.Equal(t, "base-9", entry["tenant_id"])
	assert.Equal(t, float64(1), entry["days_left"])
}
