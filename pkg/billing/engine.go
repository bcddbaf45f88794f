package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/async"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("basekeeper/billing")

const (
	listenerTimeout = 30 * time.Second
	adjustWorkers   = 4
)

// ConfirmationListener consumes confirmed payments, e.g. to render a receipt
// or notify the tenant. Listeners run after the confirmation committed and
// cannot change its outcome.
type ConfirmationListener interface {
	PaymentConfirmed(ctx context.Context, confirmation *Confirmation) error
}

// ConfirmationListenerFunc adapts a function to ConfirmationListener
type ConfirmationListenerFunc func(ctx context.Context, confirmation *Confirmation) error

// PaymentConfirmed calls f
func (f ConfirmationListenerFunc) PaymentConfirmed(ctx context.Context, confirmation *Confirmation) error {
	return f(ctx, confirmation)
}

// Engine applies and reverses the effect of payments on subscriptions. It is
// the only writer of a subscription's member limit, end date and status.
type Engine struct {
	store   Store
	clock   Clock
	logger  *observability.Logger
	metrics *observability.Metrics

	mu        sync.RWMutex
	listeners []ConfirmationListener
}

// NewEngine creates an Engine. metrics may be nil.
func NewEngine(store Store, clock Clock, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Engine{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// AddListener registers a listener for committed confirmations
func (e *Engine) AddListener(listener ConfirmationListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// Confirm marks a pending payment confirmed and applies its effect to the
// tenant's subscription in one tenant transaction. On any error the payment
// stays pending and the subscription is untouched.
func (e *Engine) Confirm(ctx context.Context, paymentID, confirmedBy string) (*Confirmation, error) {
	ctx, span := tracer.Start(ctx, "billing.Confirm",
		trace.WithAttributes(attribute.String("payment.id", paymentID)))
	defer span.End()

	payment, err := e.store.Payments().GetPayment(ctx, paymentID)
	if err != nil {
		e.metrics.RecordConfirmation("unknown", outcomeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load payment")
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.id", payment.TenantID))

	var result *Confirmation
	started := time.Now()
	err = e.store.InTenantTx(ctx, payment.TenantID, func(ctx context.Context, repos Repositories) error {
		// Reload under the tenant lock; a concurrent confirm may have won.
		current, err := repos.Payments().GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		switch current.Status {
		case PaymentStatusPending:
		case PaymentStatusConfirmed:
			return ErrAlreadyConfirmed
		default:
			return fmt.Errorf("%w: status is %s", ErrNotPending, current.Status)
		}

		sub, err := loadSubscription(ctx, repos, current.TenantID)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		next, created, err := applyPayment(current, sub, now)
		if err != nil {
			return err
		}
		if err := repos.Subscriptions().SaveSubscription(ctx, next); err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}

		current.Status = PaymentStatusConfirmed
		current.ConfirmedAt = &now
		current.ConfirmedBy = confirmedBy
		current.UpdatedAt = now
		if err := repos.Payments().UpdatePayment(ctx, current); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		result = &Confirmation{Payment: current, Subscription: next, Created: created}
		return nil
	})
	e.metrics.ObserveTransaction("confirm", started)

	log := e.logger.WithPayment(paymentID, payment.TenantID)
	if err != nil {
		e.metrics.RecordConfirmation(string(payment.Type), outcomeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation failed")
		log.WithError(err).Warn("payment confirmation rejected")
		return nil, err
	}

	e.metrics.RecordConfirmation(string(payment.Type), "confirmed")
	log.WithFields(map[string]interface{}{
		"type":         payment.Type,
		"confirmed_by": confirmedBy,
		"member_limit": result.Subscription.MemberLimit,
		"end_date":     result.Subscription.EndDate,
		"created":      result.Created,
	}).Info("payment confirmed")

	e.notify(ctx, result)
	return result, nil
}

// DeletePayment removes a payment. A confirmed payment has its effect
// reversed first, in the same tenant transaction; if the reversal fails the
// payment is kept.
func (e *Engine) DeletePayment(ctx context.Context, paymentID string) error {
	ctx, span := tracer.Start(ctx, "billing.DeletePayment",
		trace.WithAttributes(attribute.String("payment.id", paymentID)))
	defer span.End()

	payment, err := e.store.Payments().GetPayment(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load payment")
		return err
	}

	reversed := false
	started := time.Now()
	err = e.store.InTenantTx(ctx, payment.TenantID, func(ctx context.Context, repos Repositories) error {
		current, err := repos.Payments().GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}

		if current.Status == PaymentStatusConfirmed {
			sub, err := loadSubscription(ctx, repos, current.TenantID)
			if err != nil {
				return err
			}
			next, err := reversePayment(current, sub, e.clock.Now())
			if err != nil {
				return err
			}
			if err := repos.Subscriptions().SaveSubscription(ctx, next); err != nil {
				return fmt.Errorf("failed to save subscription: %w", err)
			}
			reversed = true
		}

		return repos.Payments().DeletePayment(ctx, paymentID)
	})
	e.metrics.ObserveTransaction("delete", started)

	log := e.logger.WithPayment(paymentID, payment.TenantID)
	if err != nil {
		if payment.Status == PaymentStatusConfirmed {
			e.metrics.RecordReversal(string(payment.Type), outcomeOf(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		log.WithError(err).Error("payment deletion aborted")
		return err
	}

	if reversed {
		e.metrics.RecordReversal(string(payment.Type), "reversed")
	}
	log.WithField("reversed", reversed).Info("payment deleted")
	return nil
}

// AdjustEndDates sets the end date of every listed tenant's subscription.
// Tenants without a subscription are skipped. Each tenant is updated in its
// own transaction; the count of updated tenants is returned together with
// the joined errors of the tenants that failed.
func (e *Engine) AdjustEndDates(ctx context.Context, tenantIDs []string, endDate time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "billing.AdjustEndDates",
		trace.WithAttributes(attribute.Int("tenants", len(tenantIDs))))
	defer span.End()

	var updated atomic.Int64
	err := async.ForEach(ctx, uniqueIDs(tenantIDs), adjustWorkers, func(ctx context.Context, tenantID string) error {
		return e.store.InTenantTx(ctx, tenantID, func(ctx context.Context, repos Repositories) error {
			sub, err := loadSubscription(ctx, repos, tenantID)
			if err != nil {
				return err
			}
			if sub == nil {
				return nil
			}

			next := sub.Clone()
			next.EndDate = endDate
			next.UpdatedAt = e.clock.Now()
			if err := next.checkInvariants(); err != nil {
				return err
			}
			if err := repos.Subscriptions().SaveSubscription(ctx, next); err != nil {
				return fmt.Errorf("failed to save subscription for tenant %s: %w", tenantID, err)
			}

			updated.Add(1)
			e.metrics.RecordEndDateAdjustment()
			return nil
		})
	})

	count := int(updated.Load())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "some end dates were not adjusted")
		e.logger.WithError(err).WithField("updated", count).Warn("bulk end date adjustment incomplete")
		return count, err
	}

	e.logger.WithFields(map[string]interface{}{
		"updated":  count,
		"end_date": endDate,
	}).Info("subscription end dates adjusted")
	return count, nil
}

// Subscription returns the tenant's subscription
func (e *Engine) Subscription(ctx context.Context, tenantID string) (*Subscription, error) {
	return e.store.Subscriptions().GetSubscription(ctx, tenantID)
}

// Subscriptions returns every tenant's subscription
func (e *Engine) Subscriptions(ctx context.Context) ([]*Subscription, error) {
	return e.store.Subscriptions().ListSubscriptions(ctx)
}

func (e *Engine) notify(ctx context.Context, confirmation *Confirmation) {
	e.mu.RLock()
	listeners := append([]ConfirmationListener(nil), e.listeners...)
	e.mu.RUnlock()

	for _, listener := range listeners {
		// Each listener gets its own copy so none can observe another's mutations.
		c := &Confirmation{
			Payment:      confirmation.Payment.Clone(),
			Subscription: confirmation.Subscription.Clone(),
			Created:      confirmation.Created,
		}
		async.SafeGo(ctx, e.logger, listenerTimeout, "confirmation listener", func(ctx context.Context) error {
			return listener.PaymentConfirmed(ctx, c)
		})
	}
}

// loadSubscription returns nil without error when the tenant has none
func loadSubscription(ctx context.Context, repos Repositories, tenantID string) (*Subscription, error) {
	sub, err := repos.Subscriptions().GetSubscription(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub, nil
}

// applyPayment computes the subscription that results from confirming p at
// now. sub is nil when the tenant has no subscription yet. The returned bool
// reports whether a new subscription was created.
func applyPayment(p *Payment, sub *Subscription, now time.Time) (*Subscription, bool, error) {
	var (
		next    *Subscription
		created bool
	)

	switch p.Type {
	case PaymentTypeSubscription:
		next, created = createOrExtend(p, sub, now)
	case PaymentTypeMemberAddition:
		if sub == nil {
			return nil, false, fmt.Errorf("cannot add members to tenant %s: %w", p.TenantID, ErrSubscriptionNotFound)
		}
		next = sub.Clone()
		next.MemberLimit += p.Metadata.memberCount()
	default:
		return nil, false, &ValidationError{Record: "payment", Field: "type", Reason: fmt.Sprintf("has unknown value %q", p.Type)}
	}

	next.UpdatedAt = now
	if err := next.checkInvariants(); err != nil {
		return nil, false, err
	}
	return next, created, nil
}

// createOrExtend buys metadata.months of coverage. Renewals start where the
// current paid period ends so unused time is kept.
func createOrExtend(p *Payment, sub *Subscription, now time.Time) (*Subscription, bool) {
	start := now
	if sub != nil && sub.EndDate.After(now) {
		start = sub.EndDate
	}
	if override := p.Metadata.StartDate; override != nil && !override.IsZero() {
		start = *override
	}
	end := AddMonths(start, p.Metadata.months())

	var (
		next    *Subscription
		created bool
	)
	if sub == nil {
		created = true
		next = &Subscription{
			TenantID:    p.TenantID,
			Plan:        PlanMonthly,
			MemberLimit: seedMemberLimit(p.Metadata),
			CreatedAt:   now,
		}
	} else {
		next = sub.Clone()
	}

	if p.Metadata.Plan != "" {
		next.Plan = p.Metadata.Plan
	}
	next.Status = SubscriptionStatusActive
	next.StartDate = start
	next.EndDate = end
	next.Amount = p.Amount
	return next, created
}

func seedMemberLimit(m PaymentMetadata) int {
	if m.NewMemberLimit != nil {
		return *m.NewMemberLimit
	}
	return m.memberCount()
}

// reversePayment computes the subscription after undoing a confirmed p at now
func reversePayment(p *Payment, sub *Subscription, now time.Time) (*Subscription, error) {
	if sub == nil {
		return nil, fmt.Errorf("cannot reverse payment %s: %w", p.ID, ErrSubscriptionNotFound)
	}
	next := sub.Clone()

	switch p.Type {
	case PaymentTypeSubscription:
		months := p.Metadata.months()
		next.EndDate = AddMonths(sub.EndDate, -months)
		if next.EndDate.Before(next.StartDate) {
			// The removed months reach into the current period; shift it back.
			next.StartDate = AddMonths(sub.StartDate, -months)
			if next.EndDate.Before(next.StartDate) {
				next.StartDate = next.EndDate
			}
		}
		if next.EndDate.Before(now) {
			next.Status = SubscriptionStatusExpired
		}
	case PaymentTypeMemberAddition:
		next.MemberLimit = max(0, sub.MemberLimit-p.Metadata.memberCount())
	default:
		return nil, &ValidationError{Record: "payment", Field: "type", Reason: fmt.Sprintf("has unknown value %q", p.Type)}
	}

	next.UpdatedAt = now
	if err := next.checkInvariants(); err != nil {
		return nil, err
	}
	return next, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// outcomeOf maps an error to a metric label
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyConfirmed):
		return "already_confirmed"
	case errors.Is(err, ErrSubscriptionNotFound):
		return "subscription_not_found"
	case errors.Is(err, ErrNotPending):
		return "not_pending"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	default:
		return "error"
	}
}
